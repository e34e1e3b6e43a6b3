// Package protocol defines the wire messages exchanged between the tunnel
// server and workstation agents: a length-prefixed, JSON-tagged union sent
// over one QUIC-style substream per frame.
package protocol

import "github.com/google/uuid"

// Message type tags, matching the "type" discriminator field on the wire.
const (
	TypeRegister     = "register"
	TypeRegistered   = "registered"
	TypeReconnect    = "reconnect"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
	TypeHTTPRequest  = "http_request"
	TypeHTTPResponse = "http_response"
	TypeWSOpen       = "ws_open"
	TypeWSData       = "ws_data"
	TypeWSClose      = "ws_close"
	TypeSSEOpen      = "sse_open"
	TypeSSEHeaders   = "sse_headers"
	TypeSSEData      = "sse_data"
	TypeSSEClose     = "sse_close"
)

// Message is any of the tagged variants below. Concrete types are pointers
// so decode can hand back one without a copy.
type Message interface {
	MessageType() string
}

type RegisterMessage struct {
	Type          string `json:"type"`
	APIKey        string `json:"api_key"`
	WorkstationID string `json:"workstation_id"`
}

func NewRegisterMessage(apiKey, workstationID string) *RegisterMessage {
	return &RegisterMessage{Type: TypeRegister, APIKey: apiKey, WorkstationID: workstationID}
}

func (m *RegisterMessage) MessageType() string { return TypeRegister }

type RegisteredMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func NewRegisteredMessage(url string) *RegisteredMessage {
	return &RegisteredMessage{Type: TypeRegistered, URL: url}
}

func (m *RegisteredMessage) MessageType() string { return TypeRegistered }

type ReconnectMessage struct {
	Type          string  `json:"type"`
	APIKey        string  `json:"api_key"`
	WorkstationID string  `json:"workstation_id"`
	SessionTicket *string `json:"session_ticket,omitempty"`
}

func NewReconnectMessage(apiKey, workstationID string, ticket *string) *ReconnectMessage {
	return &ReconnectMessage{Type: TypeReconnect, APIKey: apiKey, WorkstationID: workstationID, SessionTicket: ticket}
}

func (m *ReconnectMessage) MessageType() string { return TypeReconnect }

type PingMessage struct {
	Type      string `json:"type"`
	Timestamp uint64 `json:"timestamp"`
}

func NewPingMessage(timestamp uint64) *PingMessage {
	return &PingMessage{Type: TypePing, Timestamp: timestamp}
}

func (m *PingMessage) MessageType() string { return TypePing }

type PongMessage struct {
	Type      string `json:"type"`
	Timestamp uint64 `json:"timestamp"`
}

func NewPongMessage(timestamp uint64) *PongMessage {
	return &PongMessage{Type: TypePong, Timestamp: timestamp}
}

func (m *PongMessage) MessageType() string { return TypePong }

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Code: code, Message: message}
}

func (m *ErrorMessage) MessageType() string { return TypeError }

type HTTPRequestMessage struct {
	Type     string            `json:"type"`
	StreamID uuid.UUID         `json:"stream_id"`
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Headers  map[string]string `json:"headers"`
	Body     *string           `json:"body,omitempty"`
}

func NewHTTPRequestMessage(streamID uuid.UUID, method, path string, headers map[string]string, body *string) *HTTPRequestMessage {
	return &HTTPRequestMessage{Type: TypeHTTPRequest, StreamID: streamID, Method: method, Path: path, Headers: headers, Body: body}
}

func (m *HTTPRequestMessage) MessageType() string { return TypeHTTPRequest }

type HTTPResponseMessage struct {
	Type     string            `json:"type"`
	StreamID uuid.UUID         `json:"stream_id"`
	Status   uint16            `json:"status"`
	Headers  map[string]string `json:"headers"`
	Body     *string           `json:"body,omitempty"`
}

func NewHTTPResponseMessage(streamID uuid.UUID, status uint16, headers map[string]string, body *string) *HTTPResponseMessage {
	return &HTTPResponseMessage{Type: TypeHTTPResponse, StreamID: streamID, Status: status, Headers: headers, Body: body}
}

func (m *HTTPResponseMessage) MessageType() string { return TypeHTTPResponse }

type WSOpenMessage struct {
	Type     string            `json:"type"`
	StreamID uuid.UUID         `json:"stream_id"`
	Path     string            `json:"path"`
	Headers  map[string]string `json:"headers"`
}

func NewWSOpenMessage(streamID uuid.UUID, path string, headers map[string]string) *WSOpenMessage {
	return &WSOpenMessage{Type: TypeWSOpen, StreamID: streamID, Path: path, Headers: headers}
}

func (m *WSOpenMessage) MessageType() string { return TypeWSOpen }

type WSDataMessage struct {
	Type     string    `json:"type"`
	StreamID uuid.UUID `json:"stream_id"`
	Data     string    `json:"data"`
	IsBinary bool      `json:"is_binary"`
}

func NewWSDataMessage(streamID uuid.UUID, data string, isBinary bool) *WSDataMessage {
	return &WSDataMessage{Type: TypeWSData, StreamID: streamID, Data: data, IsBinary: isBinary}
}

func (m *WSDataMessage) MessageType() string { return TypeWSData }

type WSCloseMessage struct {
	Type     string    `json:"type"`
	StreamID uuid.UUID `json:"stream_id"`
	Code     *uint16   `json:"code,omitempty"`
	Reason   *string   `json:"reason,omitempty"`
}

func NewWSCloseMessage(streamID uuid.UUID, code *uint16, reason *string) *WSCloseMessage {
	return &WSCloseMessage{Type: TypeWSClose, StreamID: streamID, Code: code, Reason: reason}
}

func (m *WSCloseMessage) MessageType() string { return TypeWSClose }

type SSEOpenMessage struct {
	Type     string            `json:"type"`
	StreamID uuid.UUID         `json:"stream_id"`
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Headers  map[string]string `json:"headers"`
}

func NewSSEOpenMessage(streamID uuid.UUID, method, path string, headers map[string]string) *SSEOpenMessage {
	return &SSEOpenMessage{Type: TypeSSEOpen, StreamID: streamID, Method: method, Path: path, Headers: headers}
}

func (m *SSEOpenMessage) MessageType() string { return TypeSSEOpen }

type SSEHeadersMessage struct {
	Type     string            `json:"type"`
	StreamID uuid.UUID         `json:"stream_id"`
	Status   uint16            `json:"status"`
	Headers  map[string]string `json:"headers"`
}

func NewSSEHeadersMessage(streamID uuid.UUID, status uint16, headers map[string]string) *SSEHeadersMessage {
	return &SSEHeadersMessage{Type: TypeSSEHeaders, StreamID: streamID, Status: status, Headers: headers}
}

func (m *SSEHeadersMessage) MessageType() string { return TypeSSEHeaders }

type SSEDataMessage struct {
	Type     string    `json:"type"`
	StreamID uuid.UUID `json:"stream_id"`
	Data     string    `json:"data"`
}

func NewSSEDataMessage(streamID uuid.UUID, data string) *SSEDataMessage {
	return &SSEDataMessage{Type: TypeSSEData, StreamID: streamID, Data: data}
}

func (m *SSEDataMessage) MessageType() string { return TypeSSEData }

type SSECloseMessage struct {
	Type     string    `json:"type"`
	StreamID uuid.UUID `json:"stream_id"`
	Error    *string   `json:"error,omitempty"`
}

func NewSSECloseMessage(streamID uuid.UUID, errMsg *string) *SSECloseMessage {
	return &SSECloseMessage{Type: TypeSSEClose, StreamID: streamID, Error: errMsg}
}

func (m *SSECloseMessage) MessageType() string { return TypeSSEClose }
