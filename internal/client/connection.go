package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/net/quic"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/transport"
)

// connector dials the gateway and runs the register/reconnect handshake. A
// zero-byte marker file at ticketPath is the "session ticket" this release
// persists, standing in for real 0-RTT resumption material.
type connector struct {
	config Config
}

func newConnector(cfg Config) *connector {
	return &connector{config: cfg}
}

// connect dials the gateway, performs the handshake, and returns the live
// transport plus the public URL it reported.
func (c *connector) connect(ctx context.Context) (transport.Conn, string, error) {
	host, _, err := net.SplitHostPort(c.config.Server.Address)
	if err != nil {
		host = c.config.Server.Address
	}

	resolved, err := preferIPv4(ctx, c.config.Server.Address)
	if err != nil {
		return transport.Conn{}, "", fmt.Errorf("resolve server address: %w", err)
	}

	tlsConfig := &tls.Config{
		// Trusting any certificate is a deliberate, explicitly-opted-into
		// relaxation for this release, not a default.
		InsecureSkipVerify: c.config.Insecure,
		ServerName:         host,
		NextProtos:         []string{transport.ALPN},
	}

	ep, err := transport.Listen("0.0.0.0:0", &quic.Config{TLSConfig: tlsConfig})
	if err != nil {
		return transport.Conn{}, "", fmt.Errorf("create client endpoint: %w", err)
	}

	dialConfig := &quic.Config{
		TLSConfig:            tlsConfig,
		MaxBidiRemoteStreams: int64(transport.MaxConcurrentStreams),
	}

	conn, err := transport.Dial(ctx, ep, resolved, dialConfig)
	if err != nil {
		return transport.Conn{}, "", fmt.Errorf("dial gateway: %w", err)
	}

	hasTicket := c.hasSessionTicket()
	url, err := c.handshake(ctx, conn, hasTicket)
	if err == nil {
		return conn, url, nil
	}

	// A stale ticket (server-side grace period already expired, or the
	// gateway restarted and lost its registry) leaves the agent retrying
	// Reconnect forever with no way back in. Fall back to a fresh Register
	// once, rather than surface the error. The gateway reads only one
	// handshake substream per transport, so the Register goes out on a
	// newly dialed connection.
	if hasTicket && errors.Is(err, errReconnectFailed) {
		c.clearSessionTicket()
		conn.Abort(nil)
		conn, err = transport.Dial(ctx, ep, resolved, dialConfig)
		if err != nil {
			return transport.Conn{}, "", fmt.Errorf("dial gateway: %w", err)
		}
		url, err = c.handshake(ctx, conn, false)
	}
	if err != nil {
		return transport.Conn{}, "", err
	}
	return conn, url, nil
}

var errReconnectFailed = errors.New("reconnect rejected")

func (c *connector) handshake(ctx context.Context, conn transport.Conn, reconnect bool) (string, error) {
	var handshake protocol.Message
	if reconnect {
		handshake = protocol.NewReconnectMessage(c.config.Auth.APIKey, c.config.Workstation.ID, nil)
	} else {
		handshake = protocol.NewRegisterMessage(c.config.Auth.APIKey, c.config.Workstation.ID)
	}

	stream, err := transport.OpenRequest(ctx, conn, handshake)
	if err != nil {
		return "", fmt.Errorf("open handshake substream: %w", err)
	}

	reply, err := transport.RecvOne(stream)
	if err != nil {
		return "", fmt.Errorf("read handshake reply: %w", err)
	}

	switch m := reply.(type) {
	case *protocol.RegisteredMessage:
		c.saveSessionTicket()
		return m.URL, nil
	case *protocol.ErrorMessage:
		err := fmt.Errorf("server rejected handshake: %s: %s", m.Code, m.Message)
		if reconnect && m.Code == "RECONNECT_FAILED" {
			return "", fmt.Errorf("%w: %w", errReconnectFailed, err)
		}
		return "", err
	default:
		return "", fmt.Errorf("unexpected handshake reply")
	}
}

func (c *connector) hasSessionTicket() bool {
	_, err := os.Stat(c.config.Session.TicketPath)
	return err == nil
}

func (c *connector) saveSessionTicket() {
	if dir := filepath.Dir(c.config.Session.TicketPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	os.WriteFile(c.config.Session.TicketPath, nil, 0o644)
}

func (c *connector) clearSessionTicket() {
	os.Remove(c.config.Session.TicketPath)
}

func preferIPv4(ctx context.Context, address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return address, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if addr.IP.To4() != nil {
			return net.JoinHostPort(addr.IP.String(), port), nil
		}
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses found for %s", host)
	}
	return net.JoinHostPort(addrs[0].IP.String(), port), nil
}
