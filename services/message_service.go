//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"support-chat/domain"
	"support-chat/domain/event"
	"support-chat/errors"
	"support-chat/moderation"
	"support-chat/observability"
	"support-chat/repositories"
	"support-chat/search"
)

type SendMessageCommand struct {
	ConversationID string
	SenderID       string
	SenderType     string
	Content        string
	MessageType    string
}

type SendResult struct {
	MessageID string
	Events    []event.DomainEvent
}

type IMessageService interface {
	Send(ctx context.Context, cmd SendMessageCommand) (SendResult, error)
	Update(ctx context.Context, messageID, newContent string) ([]event.DomainEvent, error)
	Delete(ctx context.Context, messageID string, hard bool) ([]event.DomainEvent, error)
	MarkRead(ctx context.Context, conversationID string) error
	List(ctx context.Context, conversationID string, limit, offset int) ([]domain.Message, error)
}

// MessageService orchestrates the message use cases. It owns no state:
// the aggregate is loaded fresh per call, mutated in memory, persisted,
// and its drained events returned for the caller to hand to the publisher.
// A failed use case leaves nothing observable behind; the aggregate copy
// is simply discarded.
type MessageService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	unread        repositories.IUnreadStore
	moderator     *moderation.Moderator
	index         search.IMessageIndex
	stats         *observability.Stats
	now           func() time.Time
}

func NewMessageService(log *slog.Logger, conversations repositories.IConversationRepository,
	unread repositories.IUnreadStore, moderator *moderation.Moderator,
	index search.IMessageIndex, stats *observability.Stats) *MessageService {
	return &MessageService{
		log:           log,
		conversations: conversations,
		unread:        unread,
		moderator:     moderator,
		index:         index,
		stats:         stats,
		now:           time.Now,
	}
}

// Send appends a message to its conversation and settles the unread
// counter in the same logical operation: a counter failure fails the use
// case, so no broadcast can happen for a message whose counter skewed.
func (s *MessageService) Send(_ context.Context, cmd SendMessageCommand) (SendResult, error) {
	senderType, err := domain.ParseSenderType(cmd.SenderType)
	if err != nil {
		return SendResult{}, err
	}

	conv, err := s.conversations.Find(cmd.ConversationID)
	if err != nil {
		return SendResult{}, err
	}

	content := cmd.Content
	if senderType == domain.SenderCustomer && s.moderator != nil {
		masked, found := s.moderator.Censor(content)
		if len(found) > 0 {
			s.log.Warn("Censored words in customer message",
				"conversation_id", conv.ID, "words", strings.Join(found, ","))
			content = masked
		}
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		SenderType:     senderType,
		Content:        content,
		MessageType:    cmd.MessageType,
		Language:       detectLanguage(content),
		CreatedAt:      s.now().UTC(),
	}
	if err := conv.AppendMessage(msg); err != nil {
		return SendResult{}, err
	}
	if err := s.conversations.Save(conv); err != nil {
		return SendResult{}, err
	}

	switch senderType {
	case domain.SenderCustomer:
		err = s.unread.Increment(conv.ShopID, conv.CustomerID, 1)
	case domain.SenderAgent:
		err = s.unread.Reset(conv.ShopID, conv.CustomerID)
	}
	if err != nil {
		return SendResult{}, err
	}

	s.indexMessage(msg)
	return SendResult{MessageID: msg.ID, Events: conv.FlushEvents()}, nil
}

// Update edits a single message row without materializing the whole
// conversation, then synthesizes the MessageUpdated event. The creation
// timestamp is untouched.
func (s *MessageService) Update(_ context.Context, messageID, newContent string) ([]event.DomainEvent, error) {
	if strings.TrimSpace(newContent) == "" {
		return nil, errors.ErrEmptyMessage
	}

	msg, err := s.conversations.FindMessage(messageID)
	if err != nil {
		return nil, err
	}

	content := newContent
	if msg.SenderType == domain.SenderCustomer && s.moderator != nil {
		masked, found := s.moderator.Censor(content)
		if len(found) > 0 {
			content = masked
		}
	}

	if err := s.conversations.UpdateContent(messageID, content); err != nil {
		return nil, err
	}

	msg.Content = content
	s.indexMessage(msg)
	return []event.DomainEvent{
		event.MessageUpdated{Conversation: msg.ConversationID, Message: messageID},
	}, nil
}

// Delete removes a message. Soft keeps the row on disk but out of
// listings; hard removes it physically and from the search index.
func (s *MessageService) Delete(_ context.Context, messageID string, hard bool) ([]event.DomainEvent, error) {
	msg, err := s.conversations.FindMessage(messageID)
	if err != nil {
		return nil, err
	}

	if hard {
		err = s.conversations.HardDelete(messageID)
	} else {
		err = s.conversations.SoftDelete(messageID)
	}
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Delete(messageID); err != nil {
			s.stats.IndexFailures.Add(1)
			s.log.Warn("Search index delete failed", "message_id", messageID, "error", err)
		}
	}
	return []event.DomainEvent{
		event.MessageDeleted{Conversation: msg.ConversationID, Message: messageID, Soft: !hard},
	}, nil
}

// MarkRead resets the unread counter of the conversation's session,
// the same contract a staff reply fulfills, without a message.
func (s *MessageService) MarkRead(_ context.Context, conversationID string) error {
	conv, err := s.conversations.Find(conversationID)
	if err != nil {
		return err
	}
	return s.unread.Reset(conv.ShopID, conv.CustomerID)
}

func (s *MessageService) List(_ context.Context, conversationID string, limit, offset int) ([]domain.Message, error) {
	return s.conversations.ListByConversation(conversationID, limit, offset)
}

func (s *MessageService) indexMessage(msg domain.Message) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(msg); err != nil {
		s.stats.IndexFailures.Add(1)
		s.log.Warn("Search index write failed", "message_id", msg.ID, "error", err)
	}
}

// detectLanguage returns the ISO 639-1 code of the detected language, or
// empty when detection is unreliable (short or ambiguous content).
func detectLanguage(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
