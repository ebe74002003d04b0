package runtime

import (
	"context"
	"log/slog"
	"time"

	"support-chat/contract"
	"support-chat/domain"
	"support-chat/domain/event"
	"support-chat/envelope"
	"support-chat/observability"
	"support-chat/repositories"
)

// Publisher turns drained domain events into envelopes and pushes them to
// the outside world: best-effort persistence into the event log, then
// fan-out to every live subscriber of the affected shop/session.
//
// Live delivery is primary, the log is secondary (audit + replay): an
// append failure is logged as a warning and never blocks the broadcast.
type Publisher struct {
	log           *slog.Logger
	codec         *envelope.Codec
	eventLog      repositories.IEventLog
	conversations repositories.IConversationRepository
	registry      contract.IRegistry
	stats         *observability.Stats
}

func NewPublisher(log *slog.Logger, codec *envelope.Codec,
	eventLog repositories.IEventLog, conversations repositories.IConversationRepository,
	registry contract.IRegistry, stats *observability.Stats) *Publisher {
	return &Publisher{
		log:           log,
		codec:         codec,
		eventLog:      eventLog,
		conversations: conversations,
		registry:      registry,
		stats:         stats,
	}
}

type outbound struct {
	env          envelope.Envelope
	shopID       string
	customerCode string
}

// Publish processes events in input order: enrich, serialize, persist the
// whole batch, then broadcast one by one. Within the batch consumers see
// the same relative order the aggregate produced; there is no ordering
// promise across concurrent batches of different conversations.
//
// The mutating write already committed before Publish runs, so the
// enrichment reads observe the just-written state. Failures here are
// swallowed with logging: fan-out must not be held hostage by a
// secondary concern.
func (p *Publisher) Publish(ctx context.Context, events []event.DomainEvent) {
	if len(events) == 0 {
		return
	}

	batch := make([]outbound, 0, len(events))
	for _, evt := range events {
		conv, err := p.conversations.Find(evt.ConversationID())
		if err != nil {
			p.log.Error("Skipping event, conversation lookup failed",
				"type", evt.Name(), "conversation_id", evt.ConversationID(), "error", err)
			continue
		}

		env, err := p.codec.Serialize(evt, p.enrichment(evt))
		if err != nil {
			p.log.Error("Skipping event, serialization failed",
				"type", evt.Name(), "error", err)
			continue
		}
		batch = append(batch, outbound{env: env, shopID: conv.ShopID, customerCode: conv.CustomerID})
	}
	if len(batch) == 0 {
		return
	}

	envelopes := make([]envelope.Envelope, len(batch))
	for i, out := range batch {
		envelopes[i] = out.env
	}
	if err := p.eventLog.AppendBatch(envelopes); err != nil {
		p.stats.LogAppendFailures.Add(1)
		p.log.Warn("Event log append failed, broadcasting anyway", "error", err)
	}

	for _, out := range batch {
		frame, err := out.env.Encode()
		if err != nil {
			p.log.Error("Envelope encoding failed", "event_id", out.env.EventID, "error", err)
			continue
		}
		p.registry.SendToCustomer(out.shopID, out.customerCode, frame)
		p.registry.BroadcastToStaff(out.shopID, frame)
		p.stats.EnvelopesPublished.Add(1)
	}
}

// enrichment loads the per-event extras merged into the envelope data.
// Appended/Updated embed a full snapshot of the current message row.
func (p *Publisher) enrichment(evt event.DomainEvent) map[string]any {
	switch e := evt.(type) {
	case event.MessageAppended:
		return p.messageSnapshot(e.Message)
	case event.MessageUpdated:
		return p.messageSnapshot(e.Message)
	default:
		return nil
	}
}

func (p *Publisher) messageSnapshot(messageID string) map[string]any {
	msg, err := p.conversations.FindMessage(messageID)
	if err != nil {
		p.log.Warn("Message snapshot unavailable", "message_id", messageID, "error", err)
		return nil
	}
	return map[string]any{"message": MessageSnapshot(msg)}
}

// MessageSnapshot renders a message as the envelope data sub-object.
// External dashboards read these key names.
func MessageSnapshot(m domain.Message) map[string]any {
	return map[string]any{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"sender_type":     string(m.SenderType),
		"content":         m.Content,
		"message_type":    m.MessageType,
		"language":        m.Language,
		"created_at":      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
