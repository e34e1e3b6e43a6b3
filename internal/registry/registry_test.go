package registry

import (
	"testing"
	"time"

	"tiflis-tunnel/internal/transport"
)

func TestRegisterGetDuplicate(t *testing.T) {
	r := New(10, time.Second)
	conn := transport.Conn{}

	if err := r.Register("ws-A", conn); err != nil {
		t.Fatalf("register: %v", err)
	}

	entry, ok := r.Get("ws-A")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if entry.State != Active {
		t.Fatalf("state = %v, want Active", entry.State)
	}

	if err := r.Register("ws-A", conn); err != ErrDuplicate {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestRegisterCapacity(t *testing.T) {
	r := New(1, time.Second)
	conn := transport.Conn{}

	if err := r.Register("ws-A", conn); err != nil {
		t.Fatalf("register ws-A: %v", err)
	}
	if err := r.Register("ws-B", conn); err != ErrCapacity {
		t.Fatalf("err = %v, want ErrCapacity", err)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
}

func TestGraceWindow(t *testing.T) {
	grace := 50 * time.Millisecond
	r := New(10, grace)
	conn := transport.Conn{}

	if err := r.Register("ws-A", conn); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.MarkReconnecting("ws-A")

	if err := r.Reconnect("ws-A", conn); err != nil {
		t.Fatalf("reconnect within grace: %v", err)
	}

	r.MarkReconnecting("ws-A")
	time.Sleep(grace + 20*time.Millisecond)

	if err := r.Reconnect("ws-A", conn); err != ErrGraceExpired {
		t.Fatalf("err = %v, want ErrGraceExpired", err)
	}

	r.CleanupExpired()
	if _, ok := r.Get("ws-A"); ok {
		t.Fatal("expected entry to be removed after grace expiry")
	}
}

func TestReconnectNotFound(t *testing.T) {
	r := New(10, time.Second)
	if err := r.Reconnect("ws-missing", transport.Conn{}); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnregister(t *testing.T) {
	r := New(10, time.Second)
	conn := transport.Conn{}

	_ = r.Register("ws-A", conn)
	r.Unregister("ws-A")

	if _, ok := r.Get("ws-A"); ok {
		t.Fatal("expected entry to be gone after Unregister")
	}
}

func TestCapacityBound(t *testing.T) {
	r := New(3, time.Second)
	conn := transport.Conn{}

	ids := []string{"a", "b", "c", "d"}
	succeeded := 0
	for _, id := range ids {
		if err := r.Register(id, conn); err == nil {
			succeeded++
		}
	}
	if succeeded != 3 {
		t.Fatalf("succeeded = %d, want 3", succeeded)
	}
	if r.Count() > 3 {
		t.Fatalf("count = %d, want <= 3", r.Count())
	}
}
