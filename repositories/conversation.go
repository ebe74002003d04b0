//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"support-chat/domain"
	"support-chat/errors"
)

type IConversationRepository interface {
	Save(c *domain.Conversation) error
	Find(id string) (*domain.Conversation, error)
	FindActive(shopID, customerID string) (*domain.Conversation, error)
	// FindMessage resolves a message by id, soft-deleted rows included.
	FindMessage(id string) (domain.Message, error)
	UpdateContent(id, content string) error
	SoftDelete(id string) error
	HardDelete(id string) error
	// ListByConversation returns messages in creation order, soft-deleted excluded.
	ListByConversation(conversationID string, limit, offset int) ([]domain.Message, error)
}

// ConversationRepository persists conversations and their messages in BadgerDB.
//
// Keys:
//
//	conv:{conversation_id}                         -> conversation metadata
//	active:{shop_id}:{customer_id}                 -> conversation_id (only while active)
//	msg:{conversation_id}:{created_at:019d}:{id}   -> message row
//	msgid:{message_id}                             -> message row key
//
// The 19-digit zero-padded UnixNano keeps messages chronologically sorted
// under lexicographic iteration; the id suffix disambiguates same-nanosecond
// writes. The msgid index allows single-row edits without materializing the
// whole conversation.
type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, log: log}
}

type storedConversation struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type storedMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Content        string    `json:"content"`
	MessageType    string    `json:"message_type"`
	Language       string    `json:"language"`
	CreatedAt      time.Time `json:"created_at"`
	Deleted        bool      `json:"deleted"`
}

func convKey(id string) []byte { return []byte("conv:" + id) }

func activeKey(shopID, customerID string) []byte {
	return []byte(fmt.Sprintf("active:%s:%s", shopID, customerID))
}

func msgKey(conversationID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversationID, at.UnixNano(), id))
}

func msgIdxKey(id string) []byte { return []byte("msgid:" + id) }

// Save writes the conversation metadata, persists any messages not yet on
// disk, and maintains the active-session index. All of it happens in one
// transaction: a use case either lands completely or not at all.
func (r *ConversationRepository) Save(c *domain.Conversation) error {
	meta, err := json.Marshal(storedConversation{
		ID:         c.ID,
		ShopID:     c.ShopID,
		CustomerID: c.CustomerID,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	})
	if err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(convKey(c.ID), meta); err != nil {
			return err
		}

		switch c.Status {
		case domain.StatusActive:
			if err := txn.Set(activeKey(c.ShopID, c.CustomerID), []byte(c.ID)); err != nil {
				return err
			}
		case domain.StatusClosed:
			if err := txn.Delete(activeKey(c.ShopID, c.CustomerID)); err != nil {
				return err
			}
		}

		for _, m := range c.Messages {
			if _, err := txn.Get(msgIdxKey(m.ID)); err == nil {
				continue // already persisted by an earlier Save
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			row, err := json.Marshal(fromMessage(m))
			if err != nil {
				return err
			}
			key := msgKey(m.ConversationID, m.CreatedAt, m.ID)
			if err := txn.Set(key, row); err != nil {
				return err
			}
			if err := txn.Set(msgIdxKey(m.ID), key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return nil
}

// Find rehydrates the aggregate with its non-deleted messages.
func (r *ConversationRepository) Find(id string) (*domain.Conversation, error) {
	var meta storedConversation
	var rows []storedMessage

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(convKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &meta)
		}); err != nil {
			return err
		}

		prefix := []byte("msg:" + id + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row storedMessage
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &row)
			}); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}

	live := lo.Filter(rows, func(row storedMessage, _ int) bool { return !row.Deleted })
	return domain.Rehydrate(meta.ID, meta.ShopID, meta.CustomerID,
		domain.Status(meta.Status), meta.CreatedAt, meta.UpdatedAt,
		lo.Map(live, func(row storedMessage, _ int) domain.Message { return toMessage(row) })), nil
}

// FindActive resolves the live session for a (shop, customer) pair.
func (r *ConversationRepository) FindActive(shopID, customerID string) (*domain.Conversation, error) {
	var conversationID string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(activeKey(shopID, customerID))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			conversationID = string(v)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return r.Find(conversationID)
}

func (r *ConversationRepository) FindMessage(id string) (domain.Message, error) {
	row, err := r.getMessageRow(id)
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(row), nil
}

// UpdateContent edits a message row in place. The creation timestamp is
// untouched: edits are new events, not timestamp changes.
func (r *ConversationRepository) UpdateContent(id, content string) error {
	return r.mutateMessageRow(id, func(row *storedMessage) {
		row.Content = content
	})
}

// SoftDelete flips the deleted marker; the row stays on disk and remains
// resolvable through FindMessage, but listings exclude it.
func (r *ConversationRepository) SoftDelete(id string) error {
	return r.mutateMessageRow(id, func(row *storedMessage) {
		row.Deleted = true
	})
}

// HardDelete physically removes the row and its index entry.
func (r *ConversationRepository) HardDelete(id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgIdxKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(msgIdxKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return nil
}

func (r *ConversationRepository) ListByConversation(conversationID string, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("msg:" + conversationID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row storedMessage
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &row)
			}); err != nil {
				return err
			}
			if row.Deleted {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			messages = append(messages, toMessage(row))
			if len(messages) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return messages, nil
}

func (r *ConversationRepository) getMessageRow(id string) (storedMessage, error) {
	var row storedMessage
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(msgIdxKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rowItem, err := txn.Get(key)
		if err != nil {
			return err
		}
		return rowItem.Value(func(v []byte) error {
			return json.Unmarshal(v, &row)
		})
	})
	if err == badger.ErrKeyNotFound {
		return storedMessage{}, errors.ErrNotFound
	}
	if err != nil {
		return storedMessage{}, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return row, nil
}

func (r *ConversationRepository) mutateMessageRow(id string, mutate func(*storedMessage)) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(msgIdxKey(id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rowItem, err := txn.Get(key)
		if err != nil {
			return err
		}
		var row storedMessage
		if err := rowItem.Value(func(v []byte) error {
			return json.Unmarshal(v, &row)
		}); err != nil {
			return err
		}
		mutate(&row)
		bytes, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return nil
}

func fromMessage(m domain.Message) storedMessage {
	return storedMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderType:     string(m.SenderType),
		Content:        m.Content,
		MessageType:    m.MessageType,
		Language:       m.Language,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

func toMessage(row storedMessage) domain.Message {
	return domain.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		SenderType:     domain.SenderType(row.SenderType),
		Content:        row.Content,
		MessageType:    row.MessageType,
		Language:       row.Language,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}
