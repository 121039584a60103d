package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/errors"
)

func Test_Create_Is_First_Writer_Wins(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db, slog.Default())

	now := time.Now().UTC()
	first, err := domain.NewConversation("alice_bob", now)
	req.NoError(err)

	stored, created, err := repo.Create(first)
	req.NoError(err)
	req.True(created)
	req.Equal(first, stored)

	// A later create for the same key observes the original record.
	second, err := domain.NewConversation("alice_bob", now.Add(time.Hour))
	req.NoError(err)
	stored, created, err = repo.Create(second)
	req.NoError(err)
	req.False(created)
	req.Equal(first, stored)
}

func Test_Concurrent_Creates_Produce_One_Record(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db, slog.Default())

	conv, err := domain.NewConversation("alice_bob", time.Now().UTC())
	req.NoError(err)

	const n = 10
	var wg sync.WaitGroup
	createdCount := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, created, err := repo.Create(conv)
				if err == nil {
					createdCount <- created
					return
				}
			}
		}()
	}
	wg.Wait()
	close(createdCount)

	winners := 0
	for created := range createdCount {
		if created {
			winners++
		}
	}
	req.Equal(1, winners, "exactly one racing create may win")
}

func Test_SetLastMessage_Never_Regresses(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db, slog.Default())

	now := time.Now().UTC()
	conv, err := domain.NewConversation("alice_bob", now)
	req.NoError(err)
	_, _, err = repo.Create(conv)
	req.NoError(err)

	req.NoError(repo.SetLastMessage("alice_bob", "newer", now.Add(2*time.Second)))

	// An out-of-order retry carrying an older timestamp is a no-op.
	req.NoError(repo.SetLastMessage("alice_bob", "older", now.Add(time.Second)))

	got, err := repo.Get("alice_bob")
	req.NoError(err)
	req.Equal("newer", got.LastMessageText)
	req.Equal(now.Add(2*time.Second), got.UpdatedAt)
}

func Test_Get_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db, slog.Default())

	_, err := repo.Get("alice_bob")
	req.ErrorIs(err, errors.ErrConversationNotFound)

	err = repo.SetLastMessage("alice_bob", "text", time.Now().UTC())
	req.ErrorIs(err, errors.ErrConversationNotFound)
}

func Test_All_Returns_Every_Conversation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewConversationRepository(db, slog.Default())

	now := time.Now().UTC()
	for _, key := range []domain.ConversationKey{"alice_bob", "alice_carol", "bob_carol"} {
		conv, err := domain.NewConversation(key, now)
		req.NoError(err)
		_, _, err = repo.Create(conv)
		req.NoError(err)
	}

	all, err := repo.All()
	req.NoError(err)
	req.Len(all, 3)
}
