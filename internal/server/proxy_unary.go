package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tiflis-tunnel/internal/pending"
	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/registry"
	"tiflis-tunnel/internal/transport"
)

// publicProxy answers the public HTTP surface, relaying unary requests,
// SSE streams, and WebSocket upgrades to whichever workstation the request
// names.
type publicProxy struct {
	registry       *registry.Registry
	pending        *pending.Table
	requestTimeout time.Duration
	domain         string
}

// handleUnaryOrSSE classifies a /t/ request: WebSocket upgrades are
// routed separately via /ws/, so this only needs to pick between SSE and a
// plain unary relay based on the Accept header.
func (p *publicProxy) handleUnaryOrSSE(w http.ResponseWriter, r *http.Request) {
	if containsEventStream(r.Header.Get("Accept")) {
		p.handleSSE(w, r)
		return
	}
	p.handleUnary(w, r)
}

func containsEventStream(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		if strings.TrimSpace(part) == "text/event-stream" {
			return true
		}
	}
	return false
}

func (p *publicProxy) handleUnary(w http.ResponseWriter, r *http.Request) {
	workstationID := chi.URLParam(r, "id")
	path := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	entry, ok := p.registry.Get(workstationID)
	if !ok {
		http.Error(w, "workstation not registered", http.StatusNotFound)
		return
	}

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var body *string
	if len(bodyBytes) > 0 {
		encoded := protocol.EncodeBody(bodyBytes)
		body = &encoded
	}

	headers := headerMap(r.Header)
	streamID := uuid.New()
	request := protocol.NewHTTPRequestMessage(streamID, r.Method, path, headers, body)

	ctx, cancel := context.WithTimeout(r.Context(), p.requestTimeout)
	defer cancel()

	stream, err := transport.OpenRequest(ctx, entry.Transport, request)
	if err != nil {
		http.Error(w, "workstation unreachable", http.StatusBadGateway)
		return
	}
	// Closing the substream on every exit path (including timeout) lets
	// the workstation observe cancellation instead of writing a response
	// nobody reads.
	defer stream.Close()

	replyCh := make(chan protocol.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, err := transport.RecvOne(stream)
		if err != nil {
			errCh <- err
			return
		}
		replyCh <- msg
	}()

	select {
	case <-ctx.Done():
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	case err := <-errCh:
		_ = err
		http.Error(w, "bad gateway", http.StatusBadGateway)
	case msg := <-replyCh:
		resp, ok := msg.(*protocol.HTTPResponseMessage)
		if !ok {
			http.Error(w, "unexpected reply from workstation", http.StatusInternalServerError)
			return
		}
		writeUnaryResponse(w, resp)
	}
}

func writeUnaryResponse(w http.ResponseWriter, resp *protocol.HTTPResponseMessage) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}

	var payload []byte
	if resp.Body != nil {
		decoded, err := protocol.DecodeBody(*resp.Body)
		if err != nil {
			http.Error(w, "malformed response body", http.StatusInternalServerError)
			return
		}
		payload = decoded
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(int(resp.Status))
	w.Write(payload)
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name := range h {
		out[name] = h.Get(name)
	}
	return out
}
