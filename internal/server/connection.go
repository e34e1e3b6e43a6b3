package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/net/quic"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/registry"
	"tiflis-tunnel/internal/transport"
)

// handleConnection runs the handshake on a freshly accepted transport, then
// hands off to the inbound loop for as long as the workstation stays
// connected.
func (s *TunnelServer) handleConnection(ctx context.Context, conn transport.Conn) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		log.Printf("[QUIC] accept handshake substream: %v", err)
		return
	}

	msg, err := transport.RecvOne(stream)
	if err != nil {
		log.Printf("[QUIC] read handshake message: %v", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.RegisterMessage:
		s.handleRegister(ctx, conn, stream, m)
	case *protocol.ReconnectMessage:
		s.handleReconnect(ctx, conn, stream, m)
	default:
		transport.SendOne(stream, protocol.NewErrorMessage("INVALID_MESSAGE", "expected register or reconnect message"))
		stream.CloseWrite()
	}
}

func (s *TunnelServer) handleRegister(ctx context.Context, conn transport.Conn, stream *quic.Stream, reg *protocol.RegisterMessage) {
	if reg.APIKey != s.config.Auth.APIKey {
		transport.SendOne(stream, protocol.NewErrorMessage("AUTH_FAILED", "invalid API key"))
		stream.CloseWrite()
		return
	}

	if err := s.registry.Register(reg.WorkstationID, conn); err != nil {
		code := "REGISTRATION_FAILED"
		if errors.Is(err, registry.ErrCapacity) {
			code = "LIMIT_REACHED"
		}
		transport.SendOne(stream, protocol.NewErrorMessage(code, err.Error()))
		stream.CloseWrite()
		return
	}

	url := s.publicURL(reg.WorkstationID)
	if err := transport.SendOne(stream, protocol.NewRegisteredMessage(url)); err != nil {
		log.Printf("[QUIC] send registered reply: %v", err)
		s.registry.Unregister(reg.WorkstationID)
		return
	}
	stream.CloseWrite()

	log.Printf("[QUIC] workstation %q registered", reg.WorkstationID)
	s.handleWorkstationMessages(ctx, conn, reg.WorkstationID)

	// handleWorkstationMessages already marked the entry Reconnecting; only
	// a clean shutdown (context cancelled) tears it down here. A dead
	// transport leaves the entry for the cleanup task's grace window.
	if ctx.Err() != nil {
		s.registry.Unregister(reg.WorkstationID)
		log.Printf("[QUIC] workstation %q disconnected", reg.WorkstationID)
	}
}

func (s *TunnelServer) handleReconnect(ctx context.Context, conn transport.Conn, stream *quic.Stream, rec *protocol.ReconnectMessage) {
	if rec.APIKey != s.config.Auth.APIKey {
		transport.SendOne(stream, protocol.NewErrorMessage("AUTH_FAILED", "invalid API key"))
		stream.CloseWrite()
		return
	}

	if err := s.registry.Reconnect(rec.WorkstationID, conn); err != nil {
		transport.SendOne(stream, protocol.NewErrorMessage("RECONNECT_FAILED", err.Error()))
		stream.CloseWrite()
		return
	}

	url := s.publicURL(rec.WorkstationID)
	if err := transport.SendOne(stream, protocol.NewRegisteredMessage(url)); err != nil {
		log.Printf("[QUIC] send registered reply: %v", err)
		return
	}
	stream.CloseWrite()

	log.Printf("[QUIC] workstation %q reconnected", rec.WorkstationID)
	s.handleWorkstationMessages(ctx, conn, rec.WorkstationID)
}

func (s *TunnelServer) publicURL(workstationID string) string {
	scheme := "http"
	if s.config.TLS.Enabled {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/t/%s", scheme, s.config.Server.Domain, workstationID)
}

// handleWorkstationMessages owns the transport for the life of the
// registration: every agent-opened substream is read once and dispatched,
// concurrently, until the transport fails. Before returning it marks the
// workstation Reconnecting rather than tearing down its registry entry.
func (s *TunnelServer) handleWorkstationMessages(ctx context.Context, conn transport.Conn, workstationID string) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			break
		}
		go s.dispatchInboundMessage(stream)
	}

	s.registry.MarkReconnecting(workstationID)
}

func (s *TunnelServer) dispatchInboundMessage(stream *quic.Stream) {
	msg, err := transport.RecvOne(stream)
	if err != nil {
		return
	}

	switch m := msg.(type) {
	case *protocol.PingMessage:
		transport.SendOne(stream, protocol.NewPongMessage(m.Timestamp))
		stream.CloseWrite()
	case *protocol.HTTPResponseMessage:
		s.pending.Complete(m.StreamID, m)
	case *protocol.WSDataMessage:
		s.pending.Complete(m.StreamID, m)
	case *protocol.WSCloseMessage:
		s.pending.Complete(m.StreamID, m)
	case *protocol.SSEHeadersMessage:
		s.pending.Complete(m.StreamID, m)
	case *protocol.SSEDataMessage:
		s.pending.Complete(m.StreamID, m)
	case *protocol.SSECloseMessage:
		s.pending.Complete(m.StreamID, m)
	default:
		// ignored: not a shape the inbound loop acts on.
	}
}
