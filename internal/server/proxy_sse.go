package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/transport"
)

func (p *publicProxy) handleSSE(w http.ResponseWriter, r *http.Request) {
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

	streamID := uuid.New()
	open := protocol.NewSSEOpenMessage(streamID, r.Method, path, headerMap(r.Header))

	stream, err := transport.OpenDuplex(r.Context(), entry.Transport, open)
	if err != nil {
		http.Error(w, "workstation unreachable", http.StatusBadGateway)
		return
	}
	// Closing the substream on every exit path (including timeout and
	// client disconnect) lets the workstation observe cancellation instead
	// of streaming into a reader nobody is waiting on.
	defer stream.Close()

	headersCtx, cancel := context.WithTimeout(r.Context(), p.requestTimeout)
	defer cancel()

	firstCh := make(chan protocol.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		msg, err := transport.RecvOne(stream)
		if err != nil {
			errCh <- err
			return
		}
		firstCh <- msg
	}()

	var headersMsg *protocol.SSEHeadersMessage
	select {
	case <-headersCtx.Done():
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		return
	case err := <-errCh:
		_ = err
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	case msg := <-firstCh:
		switch m := msg.(type) {
		case *protocol.SSEHeadersMessage:
			headersMsg = m
		case *protocol.SSECloseMessage:
			if m.Error != nil {
				http.Error(w, *m.Error, http.StatusBadGateway)
			} else {
				w.WriteHeader(http.StatusNoContent)
			}
			return
		default:
			http.Error(w, "unexpected reply from workstation", http.StatusInternalServerError)
			return
		}
	}

	for name, value := range headersMsg.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(int(headersMsg.Status))

	flusher, _ := w.(http.Flusher)

	for {
		msg, err := transport.RecvOne(stream)
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *protocol.SSEDataMessage:
			decoded, err := protocol.DecodeBody(m.Data)
			if err != nil {
				return
			}
			if _, err := w.Write(decoded); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case *protocol.SSECloseMessage:
			return
		default:
			// ignored: not a shape the SSE relay acts on.
		}

		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}
