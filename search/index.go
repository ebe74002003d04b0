//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_message_index.go -package=mocks

// Package search maintains the full-text index staff use to find messages
// across a conversation history. Indexing is best-effort from the caller's
// point of view: a failed index write is logged, never a failed use case.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"support-chat/domain"
)

type IMessageIndex interface {
	Index(msg domain.Message) error
	Delete(messageID string) error
	Search(ctx context.Context, terms, conversationID string, limit int) ([]Hit, error)
}

// MessageIndex wraps a bluge writer. The writer is long-lived and owned by
// main; readers are opened per query.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Hit is one search result with its stored fields.
type Hit struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Index upserts a message document. Called again after an edit so the
// indexed content tracks the current row.
func (i *MessageIndex) Index(m domain.Message) error {
	doc := bluge.NewDocument(m.ID).
		AddField(bluge.NewKeywordField("conversation_id", m.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", m.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("sender_type", string(m.SenderType))).
		AddField(bluge.NewKeywordField("language", m.Language)).
		AddField(bluge.NewTextField("content", m.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("created_at", m.CreatedAt).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Delete(messageID string) error {
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search matches terms against message content, optionally scoped to one
// conversation.
func (i *MessageIndex) Search(ctx context.Context, terms, conversationID string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing bluge reader failed", "error", err)
		}
	}()

	var query bluge.Query = bluge.NewMatchQuery(terms).SetField("content")
	if conversationID != "" {
		boolean := bluge.NewBooleanQuery()
		boolean.AddMust(query)
		boolean.AddMust(bluge.NewTermQuery(conversationID).SetField("conversation_id"))
		query = boolean
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit Hit
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if t, err := bluge.DecodeDateTime(value); err == nil {
					hit.CreatedAt = t
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
