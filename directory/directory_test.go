package directory

import (
	"context"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-sync/domain"
	"chat-sync/repositories"
)

func newTestDirectory(t *testing.T) (*Directory, repositories.IProfileRepository) {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	blugeCfg := bluge.DefaultConfig(t.TempDir())
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	req.NoError(err)
	t.Cleanup(func() { _ = blugeWriter.Close() })

	profiles := repositories.NewProfileRepository(db)
	return NewDirectory(blugeWriter, profiles, slog.Default(), 10), profiles
}

func seedParticipant(t *testing.T, dir *Directory, profiles repositories.IProfileRepository, name, email string) domain.Participant {
	t.Helper()
	participant, err := profiles.Create(domain.Participant{Name: name, Email: email}, "h")
	require.NoError(t, err)
	require.NoError(t, dir.IndexParticipant(participant))
	return participant
}

func Test_Search_Matches_Name_And_Email(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)
	ctx := context.Background()

	alice := seedParticipant(t, dir, profiles, "Alice Cooper", "alice@example.com")
	bob := seedParticipant(t, dir, profiles, "Bob Marley", "bob@example.com")
	self := seedParticipant(t, dir, profiles, "Searcher", "me@example.com")

	byName, err := dir.Search(ctx, self.ID, "alice")
	req.NoError(err)
	req.Len(byName, 1)
	req.Equal(alice.ID, byName[0].ID)

	byEmail, err := dir.Search(ctx, self.ID, "bob@example.com")
	req.NoError(err)
	req.NotEmpty(byEmail)
	req.Equal(bob.ID, byEmail[0].ID)
}

func Test_Search_Excludes_Caller(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)
	ctx := context.Background()

	alice := seedParticipant(t, dir, profiles, "Alice", "alice@example.com")

	results, err := dir.Search(ctx, alice.ID, "alice")
	req.NoError(err)
	req.Empty(results, "a participant must never find themselves")
}

func Test_Search_Empty_Term_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)

	seedParticipant(t, dir, profiles, "Alice", "alice@example.com")

	results, err := dir.Search(context.Background(), "someone", "   ")
	req.NoError(err)
	req.Empty(results)
}

func Test_Search_Returns_Current_Display_Snapshot(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)
	ctx := context.Background()

	alice := seedParticipant(t, dir, profiles, "Alice", "alice@example.com")

	// The profile changes after indexing; results resolve through the
	// store, so the fresh name comes back even before a reindex.
	_, err := profiles.Update(alice.ID, "Alice Cooper", "")
	req.NoError(err)

	results, err := dir.Search(ctx, "someone", "alice")
	req.NoError(err)
	req.Len(results, 1)
	req.Equal("Alice Cooper", results[0].Name)
}

func Test_ListOthers_Excludes_Caller(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)

	alice := seedParticipant(t, dir, profiles, "Alice", "alice@example.com")
	seedParticipant(t, dir, profiles, "Bob", "bob@example.com")
	seedParticipant(t, dir, profiles, "Carol", "carol@example.com")

	others, err := dir.ListOthers(alice.ID)
	req.NoError(err)
	req.Len(others, 2)
	for _, p := range others {
		req.NotEqual(alice.ID, p.ID)
	}
}

func Test_Reindex_Rebuilds_From_Profiles(t *testing.T) {
	req := require.New(t)
	dir, profiles := newTestDirectory(t)

	// Profiles exist in the store but were never indexed.
	_, err := profiles.Create(domain.Participant{Name: "Alice", Email: "alice@example.com"}, "h")
	req.NoError(err)
	_, err = profiles.Create(domain.Participant{Name: "Bob", Email: "bob@example.com"}, "h")
	req.NoError(err)

	req.NoError(dir.Reindex())

	results, err := dir.Search(context.Background(), "someone", "alice")
	req.NoError(err)
	req.Len(results, 1)
}
