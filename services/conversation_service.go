package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"support-chat/domain"
	"support-chat/domain/event"
	"support-chat/errors"
	"support-chat/repositories"
)

// ConversationService owns the conversation lifecycle use cases.
type ConversationService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	now           func() time.Time
}

func NewConversationService(log *slog.Logger, conversations repositories.IConversationRepository) *ConversationService {
	return &ConversationService{log: log, conversations: conversations, now: time.Now}
}

// Ensure returns the active conversation for a (shop, customer) pair,
// creating one when the customer has no live session. The returned events
// are non-empty only on creation.
func (s *ConversationService) Ensure(_ context.Context, shopID, customerID string) (*domain.Conversation, []event.DomainEvent, error) {
	conv, err := s.conversations.FindActive(shopID, customerID)
	if err == nil {
		return conv, nil, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, nil, err
	}

	conv = domain.NewConversation(uuid.NewString(), shopID, customerID, s.now().UTC())
	if err := s.conversations.Save(conv); err != nil {
		return nil, nil, err
	}
	s.log.Info("Conversation opened", "conversation_id", conv.ID, "shop_id", shopID)
	return conv, conv.FlushEvents(), nil
}

// Close ends an active conversation.
func (s *ConversationService) Close(_ context.Context, conversationID string) ([]event.DomainEvent, error) {
	return s.transition(conversationID, func(c *domain.Conversation, at time.Time) error {
		return c.Close(at)
	})
}

// Reopen brings a closed conversation back.
func (s *ConversationService) Reopen(_ context.Context, conversationID string) ([]event.DomainEvent, error) {
	return s.transition(conversationID, func(c *domain.Conversation, at time.Time) error {
		return c.Reopen(at)
	})
}

func (s *ConversationService) transition(conversationID string,
	mutate func(*domain.Conversation, time.Time) error) ([]event.DomainEvent, error) {
	conv, err := s.conversations.Find(conversationID)
	if err != nil {
		return nil, err
	}
	if err := mutate(conv, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.conversations.Save(conv); err != nil {
		return nil, err
	}
	return conv.FlushEvents(), nil
}
