// Package store persists accepted chat messages so the history survives
// restarts.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dev-dami/jobchat/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "msg:"

// BadgerJournal is an append-only message log in BadgerDB.
type BadgerJournal struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) the journal at path.
func Open(path string, log *slog.Logger) (*BadgerJournal, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &BadgerJournal{db: db, log: log.With("component", "journal")}, nil
}

func (j *BadgerJournal) Close() error {
	return j.db.Close()
}

// messageKey is "msg:{created_at_nanos_padded}:{id}". The 19-digit zero
// padding keeps lexicographic key order equal to acceptance order; the id
// breaks ties between messages accepted in the same nanosecond.
func messageKey(m chat.Message) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", keyPrefix, m.CreatedAt.UnixNano(), m.ID)
}

// Record appends message to the journal.
func (j *BadgerJournal) Record(message chat.Message) error {
	value, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", message.ID, err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), value)
	})
}

// Recent returns up to limit of the newest messages, oldest first.
func (j *BadgerJournal) Recent(limit int) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, limit)
	err := j.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(keyPrefix)
		// Reverse iteration must start past the last possible key.
		seekKey := append([]byte(keyPrefix), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			var message chat.Message
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, k := 0, len(messages)-1; i < k; i, k = i+1, k-1 {
		messages[i], messages[k] = messages[k], messages[i]
	}
	return messages, nil
}

// Compact deletes everything but the newest keep messages and returns the
// number of deleted entries.
func (j *BadgerJournal) Compact(keep int) (int, error) {
	var stale [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		seen := 0
		prefix := []byte(keyPrefix)
		for it.Seek(append([]byte(keyPrefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			seen++
			if seen > keep {
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch := j.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return 0, fmt.Errorf("delete %s: %w", key, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return 0, fmt.Errorf("flush compaction: %w", err)
	}

	j.log.Info("Journal compacted", "removed", len(stale), "kept", keep)
	return len(stale), nil
}
