package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MaxFrameSize is the largest JSON payload a frame may carry (10 MiB).
// Oversized frames are a fatal per-substream error (ErrTooLarge).
const MaxFrameSize = 10 * 1024 * 1024

// lengthPrefixSize is the width of the big-endian frame length header.
const lengthPrefixSize = 4

// Encode renders msg as a complete frame: a 4-byte big-endian length prefix
// followed by the JSON encoding of msg. The result is always
// lengthPrefixSize + len(payload) bytes.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("encode message: %w", ErrTooLarge)
	}

	buf := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(payload)))
	copy(buf[lengthPrefixSize:], payload)
	return buf, nil
}

// Decode reads exactly one frame from the front of data and returns the
// decoded message plus the number of bytes consumed (lengthPrefixSize +
// payload length). It never allocates more than MaxFrameSize bytes for the
// payload, even when the caller hands it a buffer with a corrupt, huge
// length prefix.
func Decode(data []byte) (Message, int, error) {
	if len(data) < lengthPrefixSize {
		return nil, 0, fmt.Errorf("decode message: %w", ErrFraming)
	}

	length := binary.BigEndian.Uint32(data[:lengthPrefixSize])
	if length > MaxFrameSize {
		return nil, 0, fmt.Errorf("decode message: %w", ErrTooLarge)
	}

	total := lengthPrefixSize + int(length)
	if len(data) < total {
		return nil, 0, fmt.Errorf("decode message: %w", ErrFraming)
	}

	msg, err := unmarshal(data[lengthPrefixSize:total])
	if err != nil {
		return nil, 0, err
	}
	return msg, total, nil
}

// typeTag is used to peek the discriminator before picking a concrete type
// to unmarshal into.
type typeTag struct {
	Type string `json:"type"`
}

func unmarshal(payload []byte) (Message, error) {
	var tag typeTag
	if err := json.Unmarshal(payload, &tag); err != nil {
		return nil, fmt.Errorf("decode message: parse: %w", err)
	}

	var msg Message
	switch tag.Type {
	case TypeRegister:
		msg = &RegisterMessage{}
	case TypeRegistered:
		msg = &RegisteredMessage{}
	case TypeReconnect:
		msg = &ReconnectMessage{}
	case TypePing:
		msg = &PingMessage{}
	case TypePong:
		msg = &PongMessage{}
	case TypeError:
		msg = &ErrorMessage{}
	case TypeHTTPRequest:
		msg = &HTTPRequestMessage{}
	case TypeHTTPResponse:
		msg = &HTTPResponseMessage{}
	case TypeWSOpen:
		msg = &WSOpenMessage{}
	case TypeWSData:
		msg = &WSDataMessage{}
	case TypeWSClose:
		msg = &WSCloseMessage{}
	case TypeSSEOpen:
		msg = &SSEOpenMessage{}
	case TypeSSEHeaders:
		msg = &SSEHeadersMessage{}
	case TypeSSEData:
		msg = &SSEDataMessage{}
	case TypeSSEClose:
		msg = &SSECloseMessage{}
	default:
		return nil, fmt.Errorf("decode message: parse: unknown type %q", tag.Type)
	}

	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("decode message: parse: %w", err)
	}
	return msg, nil
}

// EncodeBody base64-encodes a binary body for embedding in a JSON field.
func EncodeBody(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBody reverses EncodeBody.
func DecodeBody(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return data, nil
}
