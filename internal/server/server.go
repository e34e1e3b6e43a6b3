// Package server implements the gateway side of the tunnel: it accepts
// workstation agents over QUIC, accepts public HTTP clients over plain
// HTTP, and bridges the two through the workstation registry and
// pending-request table.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/quic"

	"tiflis-tunnel/internal/certs"
	"tiflis-tunnel/internal/pending"
	"tiflis-tunnel/internal/registry"
	"tiflis-tunnel/internal/transport"
)

// TunnelServer owns the registry and pending table shared by the QUIC
// accept loop, the public HTTP proxy, and the cleanup task. Run races
// all three as goroutines and returns on whichever exits first.
type TunnelServer struct {
	config      Config
	registry    *registry.Registry
	pending     *pending.Table
	tlsConfig   *tls.Config
	acmeManager *autocert.Manager
}

// New builds a TunnelServer from cfg.
func New(cfg Config) *TunnelServer {
	return &TunnelServer{
		config:   cfg,
		registry: registry.New(cfg.Limits.MaxWorkstations, time.Duration(cfg.Reliability.GracePeriod)*time.Second),
		pending:  pending.New(),
	}
}

// Run starts the HTTP proxy listener, the QUIC agent listener, and the
// cleanup task, and blocks until ctx is cancelled or one of them fails.
func (s *TunnelServer) Run(ctx context.Context) error {
	tlsConfig, manager, err := certs.ServerTLSConfig(s.config.TLS.Enabled, s.config.Server.Domain, s.config.TLS.ACMEEmail, s.config.TLS.CertsDir, transport.ALPN)
	if err != nil {
		return fmt.Errorf("build server tls config: %w", err)
	}
	s.tlsConfig = tlsConfig
	s.acmeManager = manager

	errc := make(chan error, 3)

	go func() { errc <- s.runHTTPServer(ctx) }()
	go func() { errc <- s.runQUICServer(ctx) }()
	go func() { errc <- s.runCleanupTask(ctx) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TunnelServer) runHTTPServer(ctx context.Context) error {
	router := s.newRouter()

	addr := fmt.Sprintf(":%d", s.config.Server.HTTPPort)
	httpServer := &http.Server{Addr: addr, Handler: router}

	log.Printf("[HTTP] listening on %s", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *TunnelServer) runQUICServer(ctx context.Context) error {
	quicCfg := &quic.Config{
		TLSConfig:            s.tlsConfig,
		MaxBidiRemoteStreams: int64(transport.MaxConcurrentStreams),
	}

	addr := fmt.Sprintf(":%d", s.config.Server.HTTPSPort)
	endpoint, err := transport.Listen(addr, quicCfg)
	if err != nil {
		return fmt.Errorf("listen quic: %w", err)
	}
	defer endpoint.Close(context.Background())

	log.Printf("[QUIC] listening on %s", addr)

	go func() {
		<-ctx.Done()
		endpoint.Close(context.Background())
	}()

	for {
		conn, err := transport.Accept(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[QUIC] accept error: %v", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *TunnelServer) runCleanupTask(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.registry.CleanupExpired()
		}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *TunnelServer) newRouter() chi.Router {
	router := chi.NewRouter()
	proxy := &publicProxy{
		registry:       s.registry,
		pending:        s.pending,
		requestTimeout: time.Duration(s.config.Reliability.RequestTimeout) * time.Second,
		domain:         s.config.Server.Domain,
	}

	router.Get("/health", healthCheck)
	if challenge := certs.ACMEChallengeHandler(s.acmeManager); challenge != nil {
		router.Handle("/.well-known/acme-challenge/*", challenge)
	}
	router.HandleFunc("/t/{id}/*", proxy.handleUnaryOrSSE)
	router.Get("/ws/{id}/*", proxy.handleWebSocket)
	return router
}
