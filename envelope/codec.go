// Package envelope owns the versioned wire/storage representation of
// domain events. The JSON shape {version, type, event_id, emitted_at, data}
// is an external contract: dashboards replay it, so it must not drift.
package envelope

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"support-chat/domain/event"
)

// Version is the current envelope schema version.
const Version = "v1"

// Envelope wraps one serialized domain event.
type Envelope struct {
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	EventID   string         `json:"event_id"`
	EmittedAt string         `json:"emitted_at"`
	Data      map[string]any `json:"data"`
}

// Encode renders the envelope as its canonical JSON bytes.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses envelope bytes. Unknown top-level or nested fields are
// ignored for forward compatibility; an unknown Type is the consumer's
// problem to skip, never a decode failure.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Codec serializes domain events into envelopes.
//
// event_id is generated here, at serialization time, not by the domain:
// the same logical event serialized twice yields two distinct envelopes.
// Re-publication is allowed; de-duplication is the event log's job.
//
// emitted_at values from one Codec are monotonic non-decreasing, so the
// envelopes of one publish batch never sort backwards. Safe for concurrent use.
type Codec struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

// Serialize wraps an event into a fresh envelope. enrichment is merged
// into data on top of the event's own fields (e.g. a message snapshot).
func (c *Codec) Serialize(e event.DomainEvent, enrichment map[string]any) (Envelope, error) {
	data, err := payload(e)
	if err != nil {
		return Envelope{}, err
	}
	for k, v := range enrichment {
		data[k] = v
	}
	return Envelope{
		Version:   Version,
		Type:      e.Name(),
		EventID:   uuid.NewString(),
		EmittedAt: c.emittedAt().Format(time.RFC3339Nano),
		Data:      data,
	}, nil
}

func (c *Codec) emittedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().UTC()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}

// payload matches the taxonomy exhaustively. A variant this switch does
// not know is a programming error surfaced loudly, never defaulted.
func payload(e event.DomainEvent) (map[string]any, error) {
	switch evt := e.(type) {
	case event.MessageAppended:
		return map[string]any{
			"conversation_id": evt.Conversation,
			"message_id":      evt.Message,
		}, nil
	case event.MessageUpdated:
		return map[string]any{
			"conversation_id": evt.Conversation,
			"message_id":      evt.Message,
		}, nil
	case event.MessageDeleted:
		return map[string]any{
			"conversation_id": evt.Conversation,
			"message_id":      evt.Message,
			"soft":            evt.Soft,
		}, nil
	case event.ConversationOpened:
		return map[string]any{"conversation_id": evt.Conversation}, nil
	case event.ConversationClosed:
		return map[string]any{"conversation_id": evt.Conversation}, nil
	case event.ConversationReopened:
		return map[string]any{"conversation_id": evt.Conversation}, nil
	default:
		return nil, fmt.Errorf("unknown domain event variant %T", e)
	}
}
