// Package domain contains core concepts of the support chat system.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"support-chat/errors"
)

// SenderType tells which side of the conversation authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
)

// ParseSenderType maps the small fixed set of wire strings to a SenderType.
// "admin" is a legacy alias for agent. Anything else is a parse error,
// never a silent default.
func ParseSenderType(raw string) (SenderType, error) {
	switch raw {
	case "customer":
		return SenderCustomer, nil
	case "agent", "admin":
		return SenderAgent, nil
	default:
		return "", errors.ErrInvalidSenderType
	}
}

// Message represents one chat message inside a conversation.
// CreatedAt is assigned once at creation and never mutated by content
// edits: an edit is a new event, not a timestamp change.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderType     SenderType
	Content        string
	MessageType    string
	Language       string // ISO 639-1, detected at send time, may be empty
	CreatedAt      time.Time
}
