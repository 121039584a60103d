//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-sync/codec"
	"chat-sync/domain"
	"chat-sync/errors"
)

type IMessageRepository interface {
	Append(key domain.ConversationKey, senderID, clientMessageID, text string) (domain.Message, bool, error)
	ReadSince(key domain.ConversationKey, since domain.Cursor) ([]domain.Message, domain.Cursor, error)
	Latest(key domain.ConversationKey) (domain.Message, bool, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
}

type diskMessage struct {
	Key      string
	Sender   string
	Text     string
	At       int64
	Seq      uint64
	ClientID string
}

// logMeta is the per-conversation ordering state: the last timestamp handed
// out and the running sequence number. It is written in the same
// transaction as the message, so the order survives restarts.
type logMeta struct {
	LastNanos int64
	Seq       uint64
}

// Append assigns the server timestamp and sequence, persists the message
// and its dedup marker, and returns the stored message. The timestamp is
// monotonically non-decreasing per conversation; the sequence breaks ties.
// A clientMessageID seen before returns the original message unchanged,
// which makes retries of a timed-out send indistinguishable from the first
// attempt. Returns created=false on such a replay.
func (m MessageRepository) Append(key domain.ConversationKey, senderID, clientMessageID, text string) (domain.Message, bool, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, false, errors.ErrEmptyMessage
	}

	var stored domain.Message
	created := false
	err := m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(conversationKey(key)); err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		} else if err != nil {
			return err
		}

		// Replayed clientMessageID: follow the marker to the original.
		marker, err := txn.Get(dedupKey(key, clientMessageID))
		if err == nil {
			var storageKey []byte
			if err := marker.Value(func(val []byte) error {
				storageKey = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			item, err := txn.Get(storageKey)
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				stored, err = decodeMessage(val)
				return err
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		meta, err := m.readMeta(txn, key)
		if err != nil {
			return err
		}
		tsNanos := m.now().UTC().UnixNano()
		if tsNanos < meta.LastNanos {
			tsNanos = meta.LastNanos
		}
		meta.LastNanos = tsNanos
		meta.Seq++

		stored = domain.Message{
			ConversationKey: key,
			SenderID:        senderID,
			Text:            text,
			ServerTimestamp: time.Unix(0, tsNanos).UTC(),
			Seq:             meta.Seq,
			ClientMessageID: clientMessageID,
		}
		created = true

		data, err := codec.Marshal(fromMessage(stored))
		if err != nil {
			return err
		}
		storageKey := messageKey(key, tsNanos, meta.Seq)
		if err := txn.Set(storageKey, data); err != nil {
			return err
		}
		if err := txn.Set(dedupKey(key, clientMessageID), storageKey); err != nil {
			return err
		}
		metaData, err := codec.Marshal(meta)
		if err != nil {
			return err
		}
		return txn.Set(logMetaKey(key), metaData)
	})
	if err != nil {
		if err == errors.ErrConversationNotFound || err == errors.ErrEmptyMessage {
			return domain.Message{}, false, err
		}
		return domain.Message{}, false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return stored, created, nil
}

// ReadSince scans messages strictly after the cursor, ascending. The padded
// timestamp and sequence in the key make the prefix scan come back already
// ordered. The returned cursor restarts the scan where it left off; it
// equals since when nothing new exists.
func (m MessageRepository) ReadSince(key domain.ConversationKey, since domain.Cursor) ([]domain.Message, domain.Cursor, error) {
	var messages []domain.Message
	next := since
	prefix := messagePrefix(key)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seekKey := prefix
		if !since.Timestamp.IsZero() || since.Seq > 0 {
			seekKey = messageKey(key, since.Timestamp.UnixNano(), since.Seq)
		}
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			var msg domain.Message
			err := it.Item().Value(func(val []byte) error {
				var err error
				msg, err = decodeMessage(val)
				return err
			})
			if err != nil {
				return err
			}
			if !since.Before(msg.Cursor()) {
				continue
			}
			messages = append(messages, msg)
			next = msg.Cursor()
		}
		return nil
	})
	if err != nil {
		return nil, since, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return messages, next, nil
}

// Latest returns the newest message of a conversation, or found=false for
// a conversation with no messages yet. Backs the reconciliation pass.
func (m MessageRepository) Latest(key domain.ConversationKey) (domain.Message, bool, error) {
	var latest domain.Message
	found := false
	prefix := messagePrefix(key)
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then step back onto it.
		seekKey := append(append([]byte(nil), prefix...), 0xFF)
		it.Seek(seekKey)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var err error
			latest, err = decodeMessage(val)
			found = err == nil
			return err
		})
	})
	if err != nil {
		return domain.Message{}, false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return latest, found, nil
}

func (m MessageRepository) readMeta(txn *badger.Txn, key domain.ConversationKey) (logMeta, error) {
	var meta logMeta
	item, err := txn.Get(logMetaKey(key))
	if err == badger.ErrKeyNotFound {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return codec.Unmarshal(val, &meta)
	})
	return meta, err
}

func fromMessage(msg domain.Message) diskMessage {
	return diskMessage{
		Key:      string(msg.ConversationKey),
		Sender:   msg.SenderID,
		Text:     msg.Text,
		At:       msg.ServerTimestamp.UnixNano(),
		Seq:      msg.Seq,
		ClientID: msg.ClientMessageID,
	}
}

func decodeMessage(val []byte) (domain.Message, error) {
	var disk diskMessage
	if err := codec.Unmarshal(val, &disk); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ConversationKey: domain.ConversationKey(disk.Key),
		SenderID:        disk.Sender,
		Text:            disk.Text,
		ServerTimestamp: time.Unix(0, disk.At).UTC(),
		Seq:             disk.Seq,
		ClientMessageID: disk.ClientID,
	}, nil
}
