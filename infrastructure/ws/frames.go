package ws

import "time"

// InboundFrame is the single wire shape for client -> server messages.
// Unknown or malformed frames are logged and dropped; they never close
// the connection.
type InboundFrame struct {
	Type           string `json:"type" validate:"required,oneof=auth join send typing read ping"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

type AckFrame struct {
	Type           string `json:"type"` // always "ack"
	Op             string `json:"op"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type ErrorFrame struct {
	Type   string `json:"type"` // always "error"
	Op     string `json:"op,omitempty"`
	Reason string `json:"reason"`
}

type PongFrame struct {
	Type string `json:"type"` // always "pong"
}

// TypingFrame is a transient signal: same routing as a message envelope,
// but it carries no event_id and is never written to the event log.
type TypingFrame struct {
	Type           string    `json:"type"` // always "typing"
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UserType       string    `json:"user_type"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}
