//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-sync/codec"
	"chat-sync/domain"
	"chat-sync/errors"
)

type IConversationRepository interface {
	Create(conv domain.Conversation) (domain.Conversation, bool, error)
	Get(key domain.ConversationKey) (domain.Conversation, error)
	SetLastMessage(key domain.ConversationKey, text string, at time.Time) error
	All() ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

type diskConversation struct {
	Key          string
	ParticipantA string
	ParticipantB string
	CreatedAt    int64
	UpdatedAt    int64
	LastMessage  string
}

// Create persists the conversation unless the key already exists.
// The existence check and the write share one transaction, so two racing
// first-contact sends produce exactly one record: the later writer reads
// the winner and proceeds without error.
func (c ConversationRepository) Create(conv domain.Conversation) (domain.Conversation, bool, error) {
	var stored domain.Conversation
	created := false
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(conv.Key))
		if err == nil {
			return item.Value(func(val []byte) error {
				stored, err = decodeConversation(val)
				return err
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := codec.Marshal(fromConversation(conv))
		if err != nil {
			return err
		}
		if err := txn.Set(conversationKey(conv.Key), data); err != nil {
			return err
		}
		stored = conv
		created = true
		return nil
	})
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return stored, created, nil
}

func (c ConversationRepository) Get(key domain.ConversationKey) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(key))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			conv, err = decodeConversation(val)
			return err
		})
	})
	return conv, err
}

// SetLastMessage advances the shared record's summary. Writes carrying a
// timestamp older than the stored one are ignored, same rule as mirrors.
func (c ConversationRepository) SetLastMessage(key domain.ConversationKey, text string, at time.Time) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(conversationKey(key))
		if err == badger.ErrKeyNotFound {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		var conv domain.Conversation
		if err := item.Value(func(val []byte) error {
			conv, err = decodeConversation(val)
			return err
		}); err != nil {
			return err
		}
		if !at.After(conv.UpdatedAt) {
			return nil
		}
		conv.LastMessageText = text
		conv.UpdatedAt = at
		data, err := codec.Marshal(fromConversation(conv))
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(key), data)
	})
	if err != nil && err != errors.ErrConversationNotFound {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return err
}

// All scans every conversation record, for the reconciliation pass.
func (c ConversationRepository) All() ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	prefix := []byte("con:")
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				conv, err := decodeConversation(val)
				if err != nil {
					return err
				}
				conversations = append(conversations, conv)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return conversations, nil
}

func fromConversation(conv domain.Conversation) diskConversation {
	return diskConversation{
		Key:          string(conv.Key),
		ParticipantA: conv.ParticipantA,
		ParticipantB: conv.ParticipantB,
		CreatedAt:    conv.CreatedAt.UnixNano(),
		UpdatedAt:    conv.UpdatedAt.UnixNano(),
		LastMessage:  conv.LastMessageText,
	}
}

func decodeConversation(val []byte) (domain.Conversation, error) {
	var disk diskConversation
	if err := codec.Unmarshal(val, &disk); err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		Key:             domain.ConversationKey(disk.Key),
		ParticipantA:    disk.ParticipantA,
		ParticipantB:    disk.ParticipantB,
		CreatedAt:       time.Unix(0, disk.CreatedAt).UTC(),
		UpdatedAt:       time.Unix(0, disk.UpdatedAt).UTC(),
		LastMessageText: disk.LastMessage,
	}, nil
}
