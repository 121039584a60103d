//go:generate go run go.uber.org/mock/mockgen -source=profile.go -destination=../mocks/mock_profile_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-sync/codec"
	"chat-sync/domain"
	"chat-sync/errors"
)

type IProfileRepository interface {
	Create(p domain.Participant, passwordHash string) (domain.Participant, error)
	Get(id string) (domain.Participant, error)
	GetByEmail(email string) (domain.Participant, string, error)
	Update(id, name, avatarURL string) (domain.Participant, error)
	All() ([]domain.Participant, error)
}

// ProfileRepository stores participant profiles for the identity provider
// and the directory index. The engine proper only ever reads display
// snapshots from it.
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) ProfileRepository {
	return ProfileRepository{db: db}
}

type diskProfile struct {
	ID           string
	Name         string
	Email        string
	AvatarURL    string
	PasswordHash string
	CreatedAt    int64
}

// Create mints an id and persists the profile. The email uniqueness check
// and both writes share one transaction.
func (p ProfileRepository) Create(participant domain.Participant, passwordHash string) (domain.Participant, error) {
	participant.ID = uuid.NewString()
	disk := diskProfile{
		ID:           participant.ID,
		Name:         participant.Name,
		Email:        participant.Email,
		AvatarURL:    participant.AvatarURL,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	data, err := codec.Marshal(disk)
	if err != nil {
		return domain.Participant{}, err
	}
	err = p.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(participant.Email)); err == nil {
			return errors.ErrEmailTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(profileKey(participant.ID), data); err != nil {
			return err
		}
		return txn.Set(emailKey(participant.Email), []byte(participant.ID))
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

func (p ProfileRepository) Get(id string) (domain.Participant, error) {
	disk, err := p.getDisk(id)
	if err != nil {
		return domain.Participant{}, err
	}
	return toParticipant(disk), nil
}

// GetByEmail resolves the email index and returns the profile together
// with its password hash, for credential checks.
func (p ProfileRepository) GetByEmail(email string) (domain.Participant, string, error) {
	var id string
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err == badger.ErrKeyNotFound {
			return errors.ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return domain.Participant{}, "", err
	}
	disk, err := p.getDisk(id)
	if err != nil {
		return domain.Participant{}, "", err
	}
	return toParticipant(disk), disk.PasswordHash, nil
}

// Update rewrites the display fields. Mirrors holding the old snapshot are
// refreshed lazily by the reconciler, not here.
func (p ProfileRepository) Update(id, name, avatarURL string) (domain.Participant, error) {
	var updated domain.Participant
	err := p.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		var disk diskProfile
		if err := item.Value(func(val []byte) error {
			return codec.Unmarshal(val, &disk)
		}); err != nil {
			return err
		}
		disk.Name = name
		disk.AvatarURL = avatarURL
		data, err := codec.Marshal(disk)
		if err != nil {
			return err
		}
		if err := txn.Set(profileKey(id), data); err != nil {
			return err
		}
		updated = toParticipant(disk)
		return nil
	})
	return updated, err
}

// All scans every profile, used to rebuild the directory index at boot.
func (p ProfileRepository) All() ([]domain.Participant, error) {
	var participants []domain.Participant
	prefix := []byte("pro:")
	err := p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var disk diskProfile
				if err := codec.Unmarshal(val, &disk); err != nil {
					return err
				}
				participants = append(participants, toParticipant(disk))
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
	return participants, nil
}

func (p ProfileRepository) getDisk(id string) (diskProfile, error) {
	var disk diskProfile
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if err == badger.ErrKeyNotFound {
			return errors.ErrProfileNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return codec.Unmarshal(val, &disk)
		})
	})
	return disk, err
}

func toParticipant(disk diskProfile) domain.Participant {
	return domain.Participant{
		ID:        disk.ID,
		Name:      disk.Name,
		Email:     disk.Email,
		AvatarURL: disk.AvatarURL,
	}
}
