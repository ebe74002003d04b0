//go:generate go run go.uber.org/mock/mockgen -source=eventlog.go -destination=../mocks/mock_event_log.go -package=mocks
package repositories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"support-chat/envelope"
	"support-chat/errors"
)

// IEventLog is the durable, append-only, deduplicated store of envelopes.
type IEventLog interface {
	// AppendBatch inserts the envelopes that are not already stored,
	// atomically as one unit: a concurrent reader sees all rows of the
	// batch or none. Duplicate event_ids are no-ops, not errors.
	AppendBatch(envelopes []envelope.Envelope) error
	// ReplaySince returns up to limit envelopes ordered by
	// (emitted_at, insertion order) ascending, strictly after the anchor
	// row of sinceEventID. A nil cursor starts from the oldest row.
	// An unknown cursor fails with ErrCursorNotFound.
	ReplaySince(sinceEventID *string, limit int) ([]envelope.Envelope, error)
}

// EventLog stores envelopes in BadgerDB.
//
// Keys:
//
//	evt:{emitted_at_unixnano:019d}:{seq:012d} -> envelope JSON
//	evtid:{event_id}                          -> row key
//
// emitted_at leads the key so lexicographic iteration yields emission
// order; seq is a persisted insertion counter breaking ties between
// envelopes sharing a nanosecond, keeping the order stable across calls.
type EventLog struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewEventLog(db *badger.DB, log *slog.Logger) (*EventLog, error) {
	seq, err := db.GetSequence([]byte("evtseq"), 128)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return &EventLog{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the insertion sequence.
func (l *EventLog) Close() error {
	return l.seq.Release()
}

func eventIdxKey(eventID string) []byte { return []byte("evtid:" + eventID) }

var eventPrefix = []byte("evt:")

func (l *EventLog) AppendBatch(envelopes []envelope.Envelope) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		for _, env := range envelopes {
			_, err := txn.Get(eventIdxKey(env.EventID))
			if err == nil {
				l.log.Debug("Duplicate envelope skipped", "event_id", env.EventID)
				continue
			}
			if err != badger.ErrKeyNotFound {
				return err
			}

			emitted, err := time.Parse(time.RFC3339Nano, env.EmittedAt)
			if err != nil {
				return fmt.Errorf("envelope %s has unparseable emitted_at %q: %w",
					env.EventID, env.EmittedAt, err)
			}
			n, err := l.seq.Next()
			if err != nil {
				return err
			}
			key := []byte(fmt.Sprintf("evt:%019d:%012d", emitted.UnixNano(), n))
			row, err := env.Encode()
			if err != nil {
				return err
			}
			if err := txn.Set(key, row); err != nil {
				return err
			}
			if err := txn.Set(eventIdxKey(env.EventID), key); err != nil {
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

func (l *EventLog) ReplaySince(sinceEventID *string, limit int) ([]envelope.Envelope, error) {
	if limit <= 0 {
		limit = 50
	}
	var envelopes []envelope.Envelope
	err := l.db.View(func(txn *badger.Txn) error {
		var anchor []byte
		if sinceEventID != nil {
			item, err := txn.Get(eventIdxKey(*sinceEventID))
			if err == badger.ErrKeyNotFound {
				return errors.ErrCursorNotFound
			}
			if err != nil {
				return err
			}
			anchor, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := eventPrefix
		if anchor != nil {
			start = anchor
		}
		for it.Seek(start); it.ValidForPrefix(eventPrefix); it.Next() {
			if anchor != nil && bytes.Equal(it.Item().Key(), anchor) {
				continue // the anchor row itself is excluded
			}
			var env envelope.Envelope
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &env)
			}); err != nil {
				return err
			}
			envelopes = append(envelopes, env)
			if len(envelopes) == limit {
				break
			}
		}
		return nil
	})
	if errors.Is(err, errors.ErrCursorNotFound) {
		return nil, errors.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrDatabase, err)
	}
	return envelopes, nil
}
