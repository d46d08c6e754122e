package websocket

import "dchat/internal/domain"

// Client-to-server frame types.
const (
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypeGetDefaultRoom = "get_default_room"
	TypeSetDefaultRoom = "set_default_room"
	TypeSendMessage    = "send_message"
	TypeMessagesBefore = "get_messages_before"
	TypeMessagesAfter  = "get_messages_after"
	TypeCancel         = "cancel"
)

// Server-to-client frame types.
const (
	TypeResult         = "result"
	TypeError          = "error"
	TypeMessage        = "message"
	TypeComplete       = "complete"
	TypeReceiveMessage = "receive_message"
)

// Error codes carried on error frames.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeInvalidArgument = "invalid_argument"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

// ClientFrame is a single request from the client. ID correlates the
// reply; for cancel frames it names the in-flight request to stop.
type ClientFrame struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Room   string `json:"room,omitempty"`
	Text   string `json:"text,omitempty"`
	Before *int64 `json:"before,omitempty"`
	After  int64  `json:"after,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ServerFrame is a single reply or push to the client.
type ServerFrame struct {
	Type    string              `json:"type"`
	ID      string              `json:"id,omitempty"`
	Room    string              `json:"room,omitempty"`
	Code    string              `json:"code,omitempty"`
	Error   string              `json:"error,omitempty"`
	Message *domain.MessageView `json:"message,omitempty"`
}

func resultFrame(id string) ServerFrame {
	return ServerFrame{Type: TypeResult, ID: id}
}

func errorFrame(id, code, message string) ServerFrame {
	return ServerFrame{Type: TypeError, ID: id, Code: code, Error: message}
}
