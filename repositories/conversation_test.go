package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"support-chat/domain"
	"support-chat/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(conversationID, content string, sender domain.SenderType, at time.Time) domain.Message {
	return domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       uuid.NewString(),
		SenderType:     sender,
		Content:        content,
		MessageType:    "text",
		CreatedAt:      at,
	}
}

func TestConversationRepository_SaveAndFind(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Given a conversation with two messages
	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	req.NoError(conv.AppendMessage(testMessage(conv.ID, "hi", domain.SenderCustomer, now)))
	req.NoError(conv.AppendMessage(testMessage(conv.ID, "hello", domain.SenderAgent, now.Add(time.Second))))

	// When it is saved and reloaded
	req.NoError(repo.Save(conv))
	loaded, err := repo.Find(conv.ID)

	// Then the aggregate comes back whole, messages in creation order
	req.NoError(err)
	req.Equal(conv.ID, loaded.ID)
	req.Equal(conv.ShopID, loaded.ShopID)
	req.Equal(domain.StatusActive, loaded.Status)
	req.Len(loaded.Messages, 2)
	req.Equal("hi", loaded.Messages[0].Content)
	req.Equal("hello", loaded.Messages[1].Content)
}

func TestConversationRepository_Find_Unknown(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())

	_, err := repo.Find("ghost")

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestConversationRepository_SaveTwice_NoDuplicateMessages(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC()

	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	req.NoError(conv.AppendMessage(testMessage(conv.ID, "hi", domain.SenderCustomer, now)))
	req.NoError(repo.Save(conv))

	// Saving the same aggregate again must not re-persist its messages
	req.NoError(repo.Save(conv))

	loaded, err := repo.Find(conv.ID)
	req.NoError(err)
	req.Len(loaded.Messages, 1)
}

func TestConversationRepository_ActiveIndex(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC()

	// Given a saved active conversation
	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	req.NoError(repo.Save(conv))

	// Then FindActive resolves it
	active, err := repo.FindActive("shop-1", "cust-1")
	req.NoError(err)
	req.Equal("conv-1", active.ID)

	// When the conversation closes, the index entry disappears
	req.NoError(conv.Close(now))
	req.NoError(repo.Save(conv))

	_, err = repo.FindActive("shop-1", "cust-1")
	req.ErrorIs(err, errors.ErrNotFound)

	// The conversation itself is still findable by id
	loaded, err := repo.Find("conv-1")
	req.NoError(err)
	req.Equal(domain.StatusClosed, loaded.Status)
}

func TestConversationRepository_SoftDelete(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC()

	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	msg := testMessage(conv.ID, "oops", domain.SenderCustomer, now)
	req.NoError(conv.AppendMessage(msg))
	req.NoError(repo.Save(conv))

	// When the message is soft-deleted
	req.NoError(repo.SoftDelete(msg.ID))

	// Then listings exclude it
	listed, err := repo.ListByConversation(conv.ID, 10, 0)
	req.NoError(err)
	req.Empty(listed)

	// But direct resolution still works
	found, err := repo.FindMessage(msg.ID)
	req.NoError(err)
	req.Equal("oops", found.Content)
}

func TestConversationRepository_HardDelete(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC()

	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	msg := testMessage(conv.ID, "gone", domain.SenderCustomer, now)
	req.NoError(conv.AppendMessage(msg))
	req.NoError(repo.Save(conv))

	req.NoError(repo.HardDelete(msg.ID))

	// The row is physically gone
	_, err := repo.FindMessage(msg.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	err = repo.HardDelete(msg.ID)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestConversationRepository_UpdateContent_KeepsTimestamp(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC().Truncate(time.Millisecond)

	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	msg := testMessage(conv.ID, "first draft", domain.SenderCustomer, now)
	req.NoError(conv.AppendMessage(msg))
	req.NoError(repo.Save(conv))

	// When the content is edited
	req.NoError(repo.UpdateContent(msg.ID, "final version"))

	// Then the content changed and CreatedAt did not
	found, err := repo.FindMessage(msg.ID)
	req.NoError(err)
	req.Equal("final version", found.Content)
	req.Equal(now, found.CreatedAt)
}

func TestConversationRepository_ListByConversation_Pagination(t *testing.T) {
	req := require.New(t)
	repo := NewConversationRepository(newTestDB(t), slog.Default())
	now := time.Now().UTC()

	conv := domain.NewConversation("conv-1", "shop-1", "cust-1", now)
	for i := 0; i < 5; i++ {
		msg := testMessage(conv.ID, string(rune('a'+i)), domain.SenderCustomer, now.Add(time.Duration(i)*time.Second))
		req.NoError(conv.AppendMessage(msg))
	}
	req.NoError(repo.Save(conv))

	// First page
	page, err := repo.ListByConversation(conv.ID, 2, 0)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("a", page[0].Content)
	req.Equal("b", page[1].Content)

	// Second page
	page, err = repo.ListByConversation(conv.ID, 2, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("c", page[0].Content)
	req.Equal("d", page[1].Content)
}
