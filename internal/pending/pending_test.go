package pending

import (
	"testing"

	"github.com/google/uuid"

	"tiflis-tunnel/internal/protocol"
)

func TestRegisterComplete(t *testing.T) {
	table := New()
	id := uuid.New()

	ch := table.Register(id)
	msg := protocol.NewPongMessage(42)

	if ok := table.Complete(id, msg); !ok {
		t.Fatal("expected Complete to find a waiter")
	}

	got := <-ch
	if got.MessageType() != protocol.TypePong {
		t.Fatalf("got type %q, want pong", got.MessageType())
	}
}

func TestCompleteMissingSlot(t *testing.T) {
	table := New()
	if ok := table.Complete(uuid.New(), protocol.NewPongMessage(1)); ok {
		t.Fatal("expected Complete to report false for unregistered id")
	}
}

func TestCancel(t *testing.T) {
	table := New()
	id := uuid.New()

	ch := table.Register(id)
	table.Cancel(id)

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed with no value")
	}
	if table.Count() != 0 {
		t.Fatalf("count = %d, want 0", table.Count())
	}
}
