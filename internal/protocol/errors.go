package protocol

import "errors"

// Sentinel kinds, wrapped with fmt.Errorf("...: %w", ErrX) at call sites so
// callers can classify a failure with errors.Is without string matching.
// Mirrors the Rust tunnel-core Error enum's variant taxonomy.
var (
	// ErrFraming covers short reads and truncated frames. Oversize frames
	// are reported as ErrTooLarge and malformed JSON as a wrapped parse
	// error; neither matches ErrFraming under errors.Is. Local to one
	// substream; never tears down the transport.
	ErrFraming = errors.New("framing error")

	// ErrTooLarge reports a declared payload length that exceeds
	// MaxFrameSize.
	ErrTooLarge = errors.New("frame exceeds maximum size")

	// ErrClosed reports a clean half-close observed before any bytes of
	// the next frame's length prefix arrived.
	ErrClosed = errors.New("substream closed")

	// ErrTransport covers a dead multiplexed connection.
	ErrTransport = errors.New("transport error")

	// ErrTimeout is a first-reply deadline exceeded.
	ErrTimeout = errors.New("request timeout")
)
