package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/errors"
)

func Test_Profile_Create_And_Lookup(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewProfileRepository(db)

	created, err := repo.Create(domain.Participant{
		Name:  "Alice",
		Email: "alice@example.com",
	}, "hash-a")
	req.NoError(err)
	req.NotEmpty(created.ID)

	byID, err := repo.Get(created.ID)
	req.NoError(err)
	req.Equal(created, byID)

	byEmail, hash, err := repo.GetByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(created, byEmail)
	req.Equal("hash-a", hash)
}

func Test_Profile_Email_Must_Be_Unique(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewProfileRepository(db)

	_, err := repo.Create(domain.Participant{Name: "Alice", Email: "a@example.com"}, "h1")
	req.NoError(err)

	_, err = repo.Create(domain.Participant{Name: "Imposter", Email: "a@example.com"}, "h2")
	req.ErrorIs(err, errors.ErrEmailTaken)
}

func Test_Profile_Update_Rewrites_Display_Fields(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewProfileRepository(db)

	created, err := repo.Create(domain.Participant{Name: "Alice", Email: "a@example.com"}, "h")
	req.NoError(err)

	updated, err := repo.Update(created.ID, "Alice Cooper", "https://example.com/a.png")
	req.NoError(err)
	req.Equal("Alice Cooper", updated.Name)
	req.Equal("https://example.com/a.png", updated.AvatarURL)
	req.Equal(created.Email, updated.Email)

	// The password hash is untouched by a display update.
	_, hash, err := repo.GetByEmail("a@example.com")
	req.NoError(err)
	req.Equal("h", hash)
}

func Test_Profile_Missing_Lookups(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewProfileRepository(db)

	_, err := repo.Get("nope")
	req.ErrorIs(err, errors.ErrProfileNotFound)

	_, _, err = repo.GetByEmail("nope@example.com")
	req.ErrorIs(err, errors.ErrProfileNotFound)

	_, err = repo.Update("nope", "Name", "")
	req.ErrorIs(err, errors.ErrProfileNotFound)
}

func Test_Profile_All(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewProfileRepository(db)

	for _, p := range []domain.Participant{
		{Name: "Alice", Email: "a@example.com"},
		{Name: "Bob", Email: "b@example.com"},
		{Name: "Carol", Email: "c@example.com"},
	} {
		_, err := repo.Create(p, "h")
		req.NoError(err)
	}

	all, err := repo.All()
	req.NoError(err)
	req.Len(all, 3)
}
