package services_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"support-chat/domain"
	"support-chat/domain/event"
	"support-chat/errors"
	"support-chat/mocks"
	"support-chat/services"
)

func TestConversationService_Ensure_ReturnsExistingSession(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	existing := activeConversation()
	conversations.EXPECT().FindActive("shop-1", "cust-1").Return(existing, nil)

	conv, events, err := service.Ensure(context.Background(), "shop-1", "cust-1")

	req.NoError(err)
	req.Equal(existing.ID, conv.ID)
	// No creation, no events
	req.Empty(events)
}

func TestConversationService_Ensure_CreatesWhenMissing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	conversations.EXPECT().FindActive("shop-1", "cust-1").Return(nil, errors.ErrNotFound)

	var saved *domain.Conversation
	conversations.EXPECT().
		Save(gomock.Any()).
		DoAndReturn(func(c *domain.Conversation) error {
			saved = c
			return nil
		})

	conv, events, err := service.Ensure(context.Background(), "shop-1", "cust-1")

	req.NoError(err)
	req.NotEmpty(conv.ID)
	req.Equal(domain.StatusActive, conv.Status)
	req.Same(conv, saved)

	req.Len(events, 1)
	req.Equal(event.NameConversationOpened, events[0].Name())
}

func TestConversationService_Ensure_PropagatesStorageFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	conversations.EXPECT().FindActive("shop-1", "cust-1").Return(nil, errors.ErrDatabase)

	_, _, err := service.Ensure(context.Background(), "shop-1", "cust-1")

	req.ErrorIs(err, errors.ErrDatabase)
}

func TestConversationService_Close(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	conversations.EXPECT().Find("conv-1").Return(activeConversation(), nil)
	conversations.EXPECT().Save(gomock.Any()).Return(nil)

	events, err := service.Close(context.Background(), "conv-1")

	req.NoError(err)
	req.Len(events, 1)
	req.Equal(event.NameConversationClosed, events[0].Name())
}

func TestConversationService_Close_AlreadyClosed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	now := time.Now().UTC()
	closed := domain.Rehydrate("conv-1", "shop-1", "cust-1", domain.StatusClosed, now, now, nil)
	conversations.EXPECT().Find("conv-1").Return(closed, nil)

	// The refused transition never reaches Save
	events, err := service.Close(context.Background(), "conv-1")

	req.ErrorIs(err, errors.ErrInvalidStateTransition)
	req.Empty(events)
}

func TestConversationService_Reopen(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	now := time.Now().UTC()
	closed := domain.Rehydrate("conv-1", "shop-1", "cust-1", domain.StatusClosed, now, now, nil)
	conversations.EXPECT().Find("conv-1").Return(closed, nil)
	conversations.EXPECT().Save(gomock.Any()).Return(nil)

	events, err := service.Reopen(context.Background(), "conv-1")

	req.NoError(err)
	req.Len(events, 1)
	req.Equal(event.NameConversationReopened, events[0].Name())
}

func TestConversationService_Reopen_StillActive(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	conversations := mocks.NewMockIConversationRepository(ctrl)
	service := services.NewConversationService(slog.Default(), conversations)

	conversations.EXPECT().Find("conv-1").Return(activeConversation(), nil)

	events, err := service.Reopen(context.Background(), "conv-1")

	req.ErrorIs(err, errors.ErrInvalidStateTransition)
	req.Empty(events)
}
