// Package client implements the workstation agent: it dials the gateway,
// registers a local HTTP origin, and relays inbound requests to it.
package client

import (
	"context"
	"log"
	"time"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/transport"
)

// TunnelClient owns the agent's connection lifecycle and the local proxy
// that answers requests forwarded from the gateway.
type TunnelClient struct {
	config    Config
	connector *connector
	proxy     *localProxy
	reconnect *ReconnectStrategy
}

// New builds a TunnelClient from cfg.
func New(cfg Config) *TunnelClient {
	var reconnect *ReconnectStrategy
	if cfg.Reconnect.Enabled {
		reconnect = NewReconnectStrategy(cfg.Reconnect.MaxDelay)
	}

	return &TunnelClient{
		config:    cfg,
		connector: newConnector(cfg),
		proxy:     newLocalProxy(cfg.Workstation.LocalAddress),
		reconnect: reconnect,
	}
}

// Run connects, serves, and reconnects according to the configured
// strategy until ctx is cancelled or reconnection is disabled and the
// connection drops.
func (c *TunnelClient) Run(ctx context.Context) error {
	for {
		if err := c.connectAndServe(ctx); err != nil {
			log.Printf("[client] connection error: %v", err)
		} else {
			log.Printf("[client] connection closed")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if c.reconnect == nil {
			return nil
		}
		c.reconnect.WaitBeforeRetry(ctx)
	}
}

func (c *TunnelClient) connectAndServe(ctx context.Context) error {
	log.Printf("[client] connecting to %s", c.config.Server.Address)

	conn, url, err := c.connector.connect(ctx)
	if err != nil {
		return err
	}
	log.Printf("[client] connected, tunnel url: %s", url)

	if c.reconnect != nil {
		c.reconnect.Reset()
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{}, 2)

	go func() {
		c.runPingTicker(connCtx, conn)
		done <- struct{}{}
	}()
	go func() {
		c.runAcceptLoop(connCtx, conn)
		done <- struct{}{}
	}()

	<-done
	cancel()
	return nil
}

func (c *TunnelClient) runPingTicker(ctx context.Context, conn transport.Conn) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendPing(ctx, conn); err != nil {
				log.Printf("[client] ping failed: %v", err)
				return
			}
		}
	}
}

func (c *TunnelClient) sendPing(ctx context.Context, conn transport.Conn) error {
	ping := protocol.NewPingMessage(uint64(time.Now().Unix()))
	return transport.OpenAndSend(ctx, conn, ping)
}

func (c *TunnelClient) runAcceptLoop(ctx context.Context, conn transport.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go c.proxy.handleSubstream(ctx, stream)
	}
}
