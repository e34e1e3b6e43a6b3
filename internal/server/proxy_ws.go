package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket checks whether the workstation exists before upgrading:
// once the HTTP upgrade completes there is no way back to a plain status
// code, so a missing workstation is answered with 404 while the request is
// still plain HTTP.
func (p *publicProxy) handleWebSocket(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	streamID := uuid.New()
	open := protocol.NewWSOpenMessage(streamID, path, headerMap(r.Header))

	stream, err := transport.OpenDuplex(r.Context(), entry.Transport, open)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "workstation unreachable"))
		return
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer stream.CloseWrite()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.TextMessage:
				dataMsg := protocol.NewWSDataMessage(streamID, protocol.EncodeBody(data), false)
				if err := transport.SendOne(stream, dataMsg); err != nil {
					return
				}
			case websocket.BinaryMessage:
				dataMsg := protocol.NewWSDataMessage(streamID, protocol.EncodeBody(data), true)
				if err := transport.SendOne(stream, dataMsg); err != nil {
					return
				}
			case websocket.CloseMessage:
				closeMsg := protocol.NewWSCloseMessage(streamID, nil, nil)
				transport.SendOne(stream, closeMsg)
				return
			}
		}
	}()

relay:
	for {
		msg, err := transport.RecvOne(stream)
		if err != nil {
			break
		}
		switch m := msg.(type) {
		case *protocol.WSDataMessage:
			decoded, err := protocol.DecodeBody(m.Data)
			if err != nil {
				continue
			}
			msgType := websocket.TextMessage
			if m.IsBinary {
				msgType = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(msgType, decoded); err != nil {
				break relay
			}
		case *protocol.WSCloseMessage:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			break relay
		default:
			// ignored: not a shape the WS relay acts on.
		}
	}

	// Unblock the reader goroutine's conn.ReadMessage() deterministically
	// instead of waiting on the peer to echo a close frame.
	conn.Close()
	stream.Close()
	<-done
}
