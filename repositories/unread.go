//go:generate go run go.uber.org/mock/mockgen -source=unread.go -destination=../mocks/mock_unread_store.go -package=mocks
package repositories

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"support-chat/errors"
)

// IUnreadStore tracks, per (shop, customer), how many customer messages
// are pending a staff reply. The counter never goes negative.
type IUnreadStore interface {
	Increment(shopID, customerID string, by int) error
	Reset(shopID, customerID string) error
	Get(shopID, customerID string) (int, error)
}

// UnreadStore keeps the counters in BadgerDB under unread:{shop}:{customer}.
// Updates run in the same store as message persistence so a use case can
// fail atomically instead of skewing the counter on partial failure.
type UnreadStore struct {
	db *badger.DB
}

func NewUnreadStore(db *badger.DB) *UnreadStore {
	return &UnreadStore{db: db}
}

func unreadKey(shopID, customerID string) []byte {
	return []byte(fmt.Sprintf("unread:%s:%s", shopID, customerID))
}

func (s *UnreadStore) Increment(shopID, customerID string, by int) error {
	if by <= 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readCounter(txn, unreadKey(shopID, customerID))
		if err != nil {
			return err
		}
		return txn.Set(unreadKey(shopID, customerID), []byte(strconv.Itoa(current+by)))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return nil
}

func (s *UnreadStore) Reset(shopID, customerID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(unreadKey(shopID, customerID), []byte("0"))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return nil
}

func (s *UnreadStore) Get(shopID, customerID string) (int, error) {
	var count int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		count, err = readCounter(txn, unreadKey(shopID, customerID))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return count, nil
}

func readCounter(txn *badger.Txn, key []byte) (int, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int
	err = item.Value(func(v []byte) error {
		parsed, err := strconv.Atoi(string(v))
		if err != nil {
			return err
		}
		count = parsed
		return nil
	})
	if count < 0 {
		count = 0
	}
	return count, err
}
