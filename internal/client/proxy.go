package client

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/quic"
	"nhooyr.io/websocket"

	"tiflis-tunnel/internal/protocol"
	"tiflis-tunnel/internal/transport"
)

// localProxy forwards messages arriving on a gateway-opened substream to
// the workstation's local HTTP origin.
type localProxy struct {
	baseURL string
	client  *http.Client
}

func newLocalProxy(baseURL string) *localProxy {
	return &localProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// handleSubstream reads exactly one opening message off stream and
// dispatches by shape, per the inbound contract each gateway-opened
// substream carries exactly one logical request.
func (p *localProxy) handleSubstream(ctx context.Context, stream *quic.Stream) {
	msg, err := transport.RecvOne(stream)
	if err != nil {
		return
	}

	switch m := msg.(type) {
	case *protocol.HTTPRequestMessage:
		p.handleHTTPRequest(stream, m)
	case *protocol.WSOpenMessage:
		p.handleWSOpen(ctx, stream, m)
	case *protocol.SSEOpenMessage:
		p.handleSSEOpen(stream, m)
	default:
		// ignored: not a shape the local proxy acts on.
	}
}

func (p *localProxy) handleHTTPRequest(stream *quic.Stream, req *protocol.HTTPRequestMessage) {
	var bodyReader io.Reader
	if req.Body != nil {
		decoded, err := protocol.DecodeBody(*req.Body)
		if err != nil {
			log.Printf("[proxy] decode request body: %v", err)
			return
		}
		bodyReader = bytes.NewReader(decoded)
	}

	httpReq, err := http.NewRequest(req.Method, p.baseURL+req.Path, bodyReader)
	if err != nil {
		log.Printf("[proxy] build local request: %v", err)
		return
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		log.Printf("[proxy] local request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[proxy] read local response: %v", err)
		return
	}

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	var body *string
	if len(bodyBytes) > 0 {
		encoded := protocol.EncodeBody(bodyBytes)
		body = &encoded
	}

	response := protocol.NewHTTPResponseMessage(req.StreamID, uint16(resp.StatusCode), headers, body)
	if err := transport.SendOne(stream, response); err != nil {
		log.Printf("[proxy] send response: %v", err)
		return
	}
	stream.CloseWrite()
}

func (p *localProxy) handleWSOpen(ctx context.Context, stream *quic.Stream, open *protocol.WSOpenMessage) {
	wsURL := strings.Replace(strings.Replace(p.baseURL, "https://", "wss://", 1), "http://", "ws://", 1)

	conn, _, err := websocket.Dial(ctx, wsURL+open.Path, nil)
	if err != nil {
		log.Printf("[proxy] dial local websocket: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			msg, err := transport.RecvOne(stream)
			if err != nil {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			switch m := msg.(type) {
			case *protocol.WSDataMessage:
				decoded, err := protocol.DecodeBody(m.Data)
				if err != nil {
					continue
				}
				typ := websocket.MessageText
				if m.IsBinary {
					typ = websocket.MessageBinary
				}
				if err := conn.Write(ctx, typ, decoded); err != nil {
					return
				}
			case *protocol.WSCloseMessage:
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			closeMsg := protocol.NewWSCloseMessage(open.StreamID, nil, nil)
			transport.SendOne(stream, closeMsg)
			stream.CloseWrite()
			break
		}
		dataMsg := protocol.NewWSDataMessage(open.StreamID, protocol.EncodeBody(data), typ == websocket.MessageBinary)
		if err := transport.SendOne(stream, dataMsg); err != nil {
			break
		}
	}

	// Unblock the other goroutine's transport.RecvOne(stream) deterministically
	// instead of waiting for the gateway to send a closing message.
	stream.Close()
	<-done
}

func (p *localProxy) handleSSEOpen(stream *quic.Stream, open *protocol.SSEOpenMessage) {
	httpReq, err := http.NewRequest(open.Method, p.baseURL+open.Path, nil)
	if err != nil {
		log.Printf("[proxy] build local sse request: %v", err)
		return
	}
	for name, value := range open.Headers {
		httpReq.Header.Set(name, value)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		errMsg := err.Error()
		transport.SendOne(stream, protocol.NewSSECloseMessage(open.StreamID, &errMsg))
		stream.CloseWrite()
		return
	}
	defer resp.Body.Close()

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	headersMsg := protocol.NewSSEHeadersMessage(open.StreamID, uint16(resp.StatusCode), headers)
	if err := transport.SendOne(stream, headersMsg); err != nil {
		return
	}

	reader := bufio.NewReaderSize(resp.Body, 4096)
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			dataMsg := protocol.NewSSEDataMessage(open.StreamID, protocol.EncodeBody(buf[:n]))
			if sendErr := transport.SendOne(stream, dataMsg); sendErr != nil {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				transport.SendOne(stream, protocol.NewSSECloseMessage(open.StreamID, nil))
			} else {
				msg := err.Error()
				transport.SendOne(stream, protocol.NewSSECloseMessage(open.StreamID, &msg))
			}
			stream.CloseWrite()
			return
		}
	}
}
