//go:generate go run go.uber.org/mock/mockgen -source=mirror.go -destination=../mocks/mock_mirror_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-sync/codec"
	"chat-sync/domain"
	"chat-sync/errors"
)

type IMirrorRepository interface {
	Upsert(ownerID string, entry domain.MirrorEntry) (bool, error)
	Get(ownerID string, key domain.ConversationKey) (domain.MirrorEntry, bool, error)
	List(ownerID string) ([]domain.MirrorEntry, error)
}

type MirrorRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMirrorRepository(db *badger.DB, log *slog.Logger) MirrorRepository {
	return MirrorRepository{db: db, log: log}
}

type diskMirror struct {
	Key         string
	OtherID     string
	OtherName   string
	OtherAvatar string
	LastMessage string
	UpdatedAt   int64
}

// Upsert merges the entry under last-writer-wins rules keyed by
// (ownerID, conversation key). An entry older than the stored one is a
// no-op, so out-of-order retries cannot regress the summary. An entry with
// the same timestamp but different display fields still applies; that is
// how stale counterparty snapshots get refreshed lazily. Returns whether
// the write was applied.
func (m MirrorRepository) Upsert(ownerID string, entry domain.MirrorEntry) (bool, error) {
	applied := false
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(mirrorKey(ownerID, entry.ConversationKey))
		if err == nil {
			var stored domain.MirrorEntry
			if err := item.Value(func(val []byte) error {
				stored, err = decodeMirror(val)
				return err
			}); err != nil {
				return err
			}
			if stored.UpdatedAt.After(entry.UpdatedAt) {
				return nil
			}
			if stored == entry {
				return nil
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		data, err := codec.Marshal(fromMirror(entry))
		if err != nil {
			return err
		}
		if err := txn.Set(mirrorKey(ownerID, entry.ConversationKey), data); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return applied, nil
}

func (m MirrorRepository) Get(ownerID string, key domain.ConversationKey) (domain.MirrorEntry, bool, error) {
	var entry domain.MirrorEntry
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(mirrorKey(ownerID, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = decodeMirror(val)
			found = err == nil
			return err
		})
	})
	if err != nil {
		return domain.MirrorEntry{}, false, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return entry, found, nil
}

// List returns the owner's conversation summaries ordered by updatedAt
// descending, the read model behind the conversation list view. Ties are
// broken by key descending so the order is deterministic.
func (m MirrorRepository) List(ownerID string) ([]domain.MirrorEntry, error) {
	var entries []domain.MirrorEntry
	prefix := mirrorPrefix(ownerID)
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				entry, err := decodeMirror(val)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
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
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].ConversationKey > entries[j].ConversationKey
		}
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
	return entries, nil
}

func fromMirror(entry domain.MirrorEntry) diskMirror {
	return diskMirror{
		Key:         string(entry.ConversationKey),
		OtherID:     entry.OtherID,
		OtherName:   entry.OtherName,
		OtherAvatar: entry.OtherAvatarURL,
		LastMessage: entry.LastMessageText,
		UpdatedAt:   entry.UpdatedAt.UnixNano(),
	}
}

func decodeMirror(val []byte) (domain.MirrorEntry, error) {
	var disk diskMirror
	if err := codec.Unmarshal(val, &disk); err != nil {
		return domain.MirrorEntry{}, err
	}
	return domain.MirrorEntry{
		ConversationKey: domain.ConversationKey(disk.Key),
		OtherID:         disk.OtherID,
		OtherName:       disk.OtherName,
		OtherAvatarURL:  disk.OtherAvatar,
		LastMessageText: disk.LastMessage,
		UpdatedAt:       time.Unix(0, disk.UpdatedAt).UTC(),
	}, nil
}
