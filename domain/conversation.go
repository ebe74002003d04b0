package domain

import (
	"strings"
	"time"

	"support-chat/domain/event"
	"support-chat/errors"
)

// Status is the 2-state lifecycle of a conversation.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Conversation is the aggregate: one customer's session with a shop,
// the unit of consistency for its messages.
//
// Every successful mutation enqueues exactly one domain event into the
// outbox. The outbox is a one-shot buffer per aggregate instance, drained
// once per use case invocation; it is not a replayable log. Two concurrent
// use cases must never share one instance: load fresh per call.
type Conversation struct {
	ID         string
	ShopID     string
	CustomerID string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Messages   []Message

	outbox []event.DomainEvent
}

// NewConversation opens a fresh conversation and enqueues ConversationOpened.
func NewConversation(id, shopID, customerID string, at time.Time) *Conversation {
	return &Conversation{
		ID:         id,
		ShopID:     shopID,
		CustomerID: customerID,
		Status:     StatusActive,
		CreatedAt:  at,
		UpdatedAt:  at,
		outbox:     []event.DomainEvent{event.ConversationOpened{Conversation: id}},
	}
}

// Rehydrate rebuilds an aggregate from persisted state without emitting events.
func Rehydrate(id, shopID, customerID string, status Status,
	createdAt, updatedAt time.Time, messages []Message) *Conversation {
	return &Conversation{
		ID:         id,
		ShopID:     shopID,
		CustomerID: customerID,
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
		Messages:   messages,
	}
}

// Close transitions active -> closed. Closing twice is refused.
func (c *Conversation) Close(at time.Time) error {
	if c.Status == StatusClosed {
		return errors.InvalidTransition("conversation already closed")
	}
	c.Status = StatusClosed
	c.UpdatedAt = at
	c.outbox = append(c.outbox, event.ConversationClosed{Conversation: c.ID})
	return nil
}

// Reopen transitions closed -> active. Only a closed conversation can reopen.
func (c *Conversation) Reopen(at time.Time) error {
	if c.Status != StatusClosed {
		return errors.InvalidTransition("conversation is not closed")
	}
	c.Status = StatusActive
	c.UpdatedAt = at
	c.outbox = append(c.outbox, event.ConversationReopened{Conversation: c.ID})
	return nil
}

// AppendMessage validates and appends a message, moving UpdatedAt to the
// message timestamp. Appending to a closed conversation is deliberately
// allowed; if product policy ever wants it refused, that belongs to the
// use case layer, not here.
func (c *Conversation) AppendMessage(m Message) error {
	if strings.TrimSpace(m.Content) == "" {
		return errors.ErrEmptyMessage
	}
	if m.SenderType != SenderCustomer && m.SenderType != SenderAgent {
		return errors.ErrInvalidSenderType
	}
	if m.ConversationID != c.ID {
		return errors.ErrConversationMismatch
	}
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = m.CreatedAt
	c.outbox = append(c.outbox, event.MessageAppended{Conversation: c.ID, Message: m.ID})
	return nil
}

// FlushEvents drains the outbox. The second call returns nothing.
func (c *Conversation) FlushEvents() []event.DomainEvent {
	out := c.outbox
	c.outbox = nil
	return out
}
