package protocol

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		NewPingMessage(12345),
		NewRegisterMessage("key", "ws-A"),
		NewRegisteredMessage("https://tunnel.example/t/ws-A"),
		NewErrorMessage("AUTH_FAILED", "invalid API key"),
		&HTTPRequestMessage{
			Type:     TypeHTTPRequest,
			StreamID: uuid.New(),
			Method:   "GET",
			Path:     "/health",
			Headers:  map[string]string{"accept": "*/*"},
		},
	}

	for _, msg := range cases {
		encoded, err := Encode(msg)
		if err != nil {
			t.Fatalf("encode %T: %v", msg, err)
		}

		decoded, n, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode %T: %v", msg, err)
		}
		if n != len(encoded) {
			t.Fatalf("consumed %d bytes, want %d", n, len(encoded))
		}
		if decoded.MessageType() != msg.MessageType() {
			t.Fatalf("got type %q, want %q", decoded.MessageType(), msg.MessageType())
		}
	}
}

func TestEncodeFrameSize(t *testing.T) {
	msg := NewPingMessage(1)
	encoded, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	payloadLen := len(encoded) - lengthPrefixSize
	if len(encoded) != 4+payloadLen {
		t.Fatalf("frame size = %d, want 4+%d", len(encoded), payloadLen)
	}

	declared := int(encoded[0])<<24 | int(encoded[1])<<16 | int(encoded[2])<<8 | int(encoded[3])
	if declared != payloadLen {
		t.Fatalf("declared length %d != payload length %d", declared, payloadLen)
	}
}

func TestDecodeShortData(t *testing.T) {
	if _, _, err := Decode([]byte{0, 0, 0}); err == nil {
		t.Fatal("expected error decoding fewer than 4 bytes")
	}
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding empty input")
	}
}

func TestDecodeOversizeDoesNotAllocate(t *testing.T) {
	// Declare a payload far larger than MaxFrameSize; Decode must reject
	// this from the 4-byte header alone, never attempting to read (or
	// allocate) the declared length.
	huge := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, _, err := Decode(huge); err == nil {
		t.Fatal("expected error for oversize declared length")
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	payload := []byte(`{"type": "ping", `)
	buf := make([]byte, 4+len(payload))
	buf[3] = byte(len(payload))
	copy(buf[4:], payload)

	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected parse error for malformed JSON")
	}
}

func TestEncodeDecodeBodyRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("hello world"),
	}

	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	cases = append(cases, random)

	for _, data := range cases {
		encoded := EncodeBody(data)
		decoded, err := DecodeBody(encoded)
		if err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("round trip mismatch: got %x want %x", decoded, data)
		}
	}
}
