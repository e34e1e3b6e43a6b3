// Package transport adapts golang.org/x/net/quic into the three operations
// the tunnel fabric needs on top of an encrypted, multiplexed connection:
// write one framed message on a stream, read one framed message from a
// stream, and open a fresh bidirectional stream to send or send-and-await a
// message.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/net/quic"

	"tiflis-tunnel/internal/protocol"
)

// ALPN is the protocol token both endpoints negotiate during the TLS
// handshake.
const ALPN = "tiflis-tunnel"

// MaxConcurrentStreams bounds how many bidirectional streams either side
// may have open at once on a single connection.
const MaxConcurrentStreams = 1000

// Conn wraps a *quic.Conn with the stream-opening helpers the tunnel fabric
// needs. Conn is cheap to copy by value (quic.Conn is already a pointer),
// so a registry entry and every in-flight proxy handler can each hold their
// own Conn referring to the same underlying connection.
type Conn struct {
	*quic.Conn
}

// Listen starts a QUIC server endpoint on address, ready to Accept incoming
// agent connections.
func Listen(address string, cfg *quic.Config) (*quic.Endpoint, error) {
	ep, err := quic.Listen("udp", address, cfg)
	if err != nil {
		return nil, fmt.Errorf("listen quic: %w", err)
	}
	return ep, nil
}

// Accept blocks for the next incoming agent connection.
func Accept(ctx context.Context, ep *quic.Endpoint) (Conn, error) {
	c, err := ep.Accept(ctx)
	if err != nil {
		return Conn{}, fmt.Errorf("accept quic connection: %w", protocol.ErrTransport)
	}
	return Conn{c}, nil
}

// Dial opens a client connection to a gateway at address.
func Dial(ctx context.Context, ep *quic.Endpoint, address string, cfg *quic.Config) (Conn, error) {
	c, err := ep.Dial(ctx, "udp", address, cfg)
	if err != nil {
		return Conn{}, fmt.Errorf("dial quic: %w", err)
	}
	return Conn{c}, nil
}

// SendOne writes one framed message on stream. The caller decides whether
// to half-close the send side afterward.
func SendOne(stream *quic.Stream, msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := stream.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", protocol.ErrTransport)
	}
	return nil
}

// RecvOne reads exactly one framed message from stream. A clean half-close
// observed before any byte of the 4-byte length prefix is reported as
// ErrClosed; a half-close partway through the prefix or the payload is
// ErrFraming.
func RecvOne(stream *quic.Stream) (protocol.Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(stream, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, protocol.ErrClosed
		}
		return nil, fmt.Errorf("read frame header: %w", protocol.ErrFraming)
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > protocol.MaxFrameSize {
		return nil, fmt.Errorf("read frame: %w", protocol.ErrTooLarge)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(stream, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", protocol.ErrFraming)
	}

	full := append(lenBuf[:], payload...)
	msg, _, err := protocol.Decode(full)
	return msg, err
}

// OpenAndSend opens a new bidirectional stream, writes one message, and
// half-closes the send side. It does not wait for or expose a reply; use
// OpenRequest when the caller needs one.
func OpenAndSend(ctx context.Context, conn Conn, msg protocol.Message) error {
	stream, err := conn.NewStream(ctx)
	if err != nil {
		return fmt.Errorf("open stream: %w", protocol.ErrTransport)
	}
	if err := SendOne(stream, msg); err != nil {
		return err
	}
	stream.CloseWrite()
	return nil
}

// OpenRequest opens a new bidirectional stream, writes one message, and
// half-closes the send side, but returns the stream so the caller can
// await a reply (or a stream of replies, for SSE) on the receive side.
func OpenRequest(ctx context.Context, conn Conn, msg protocol.Message) (*quic.Stream, error) {
	stream, err := conn.NewStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", protocol.ErrTransport)
	}
	if err := SendOne(stream, msg); err != nil {
		return nil, err
	}
	stream.CloseWrite()
	return stream, nil
}

// OpenDuplex opens a new bidirectional stream and writes one message
// without half-closing. It is used by the WebSocket and SSE-open paths,
// which keep writing on the same stream after the opening message.
func OpenDuplex(ctx context.Context, conn Conn, msg protocol.Message) (*quic.Stream, error) {
	stream, err := conn.NewStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", protocol.ErrTransport)
	}
	if err := SendOne(stream, msg); err != nil {
		return nil, err
	}
	return stream, nil
}
