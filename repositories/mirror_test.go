package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-sync/domain"
)

func Test_Upsert_Applies_Newer_Entries(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMirrorRepository(db, slog.Default())

	now := time.Now().UTC()
	entry := domain.MirrorEntry{
		ConversationKey: "alice_bob",
		OtherID:         "bob",
		OtherName:       "Bob",
		LastMessageText: "hi",
		UpdatedAt:       now,
	}

	applied, err := repo.Upsert("alice", entry)
	req.NoError(err)
	req.True(applied)

	newer := entry
	newer.LastMessageText = "hi again"
	newer.UpdatedAt = now.Add(time.Second)
	applied, err = repo.Upsert("alice", newer)
	req.NoError(err)
	req.True(applied)

	got, found, err := repo.Get("alice", "alice_bob")
	req.NoError(err)
	req.True(found)
	req.Equal(newer, got)
}

func Test_Upsert_Drops_Stale_Entries(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMirrorRepository(db, slog.Default())

	now := time.Now().UTC()
	current := domain.MirrorEntry{
		ConversationKey: "alice_bob",
		OtherID:         "bob",
		LastMessageText: "latest",
		UpdatedAt:       now,
	}
	_, err := repo.Upsert("alice", current)
	req.NoError(err)

	// A delayed retry carrying an older summary must not regress the view.
	stale := current
	stale.LastMessageText = "outdated"
	stale.UpdatedAt = now.Add(-time.Minute)
	applied, err := repo.Upsert("alice", stale)
	req.NoError(err)
	req.False(applied)

	got, _, err := repo.Get("alice", "alice_bob")
	req.NoError(err)
	req.Equal("latest", got.LastMessageText)
}

func Test_Upsert_Refreshes_Display_Fields_At_Same_Instant(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMirrorRepository(db, slog.Default())

	now := time.Now().UTC()
	entry := domain.MirrorEntry{
		ConversationKey: "alice_bob",
		OtherID:         "bob",
		OtherName:       "Bob",
		UpdatedAt:       now,
	}
	_, err := repo.Upsert("alice", entry)
	req.NoError(err)

	// Same timestamp, fresher display snapshot: the write still lands.
	renamed := entry
	renamed.OtherName = "Bobby"
	applied, err := repo.Upsert("alice", renamed)
	req.NoError(err)
	req.True(applied)

	// Identical entry: nothing to do.
	applied, err = repo.Upsert("alice", renamed)
	req.NoError(err)
	req.False(applied)

	got, _, err := repo.Get("alice", "alice_bob")
	req.NoError(err)
	req.Equal("Bobby", got.OtherName)
}

func Test_Mirrors_Are_Isolated_Per_Owner(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMirrorRepository(db, slog.Default())

	now := time.Now().UTC()
	_, err := repo.Upsert("alice", domain.MirrorEntry{
		ConversationKey: "alice_bob", OtherID: "bob", UpdatedAt: now,
	})
	req.NoError(err)
	_, err = repo.Upsert("bob", domain.MirrorEntry{
		ConversationKey: "alice_bob", OtherID: "alice", UpdatedAt: now,
	})
	req.NoError(err)

	aliceList, err := repo.List("alice")
	req.NoError(err)
	req.Len(aliceList, 1)
	req.Equal("bob", aliceList[0].OtherID)

	bobList, err := repo.List("bob")
	req.NoError(err)
	req.Len(bobList, 1)
	req.Equal("alice", bobList[0].OtherID)

	_, found, err := repo.Get("carol", "alice_bob")
	req.NoError(err)
	req.False(found)
}

func Test_List_Orders_By_Recency_With_Deterministic_Ties(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMirrorRepository(db, slog.Default())

	now := time.Now().UTC()
	entries := []domain.MirrorEntry{
		{ConversationKey: "alice_bob", OtherID: "bob", UpdatedAt: now.Add(time.Second)},
		{ConversationKey: "alice_carol", OtherID: "carol", UpdatedAt: now.Add(3 * time.Second)},
		// Two conversations updated at the same instant.
		{ConversationKey: "alice_dave", OtherID: "dave", UpdatedAt: now.Add(2 * time.Second)},
		{ConversationKey: "alice_erin", OtherID: "erin", UpdatedAt: now.Add(2 * time.Second)},
	}
	for _, entry := range entries {
		_, err := repo.Upsert("alice", entry)
		req.NoError(err)
	}

	list, err := repo.List("alice")
	req.NoError(err)
	req.Len(list, 4)
	req.Equal(domain.ConversationKey("alice_carol"), list[0].ConversationKey)
	req.Equal(domain.ConversationKey("alice_erin"), list[1].ConversationKey)
	req.Equal(domain.ConversationKey("alice_dave"), list[2].ConversationKey)
	req.Equal(domain.ConversationKey("alice_bob"), list[3].ConversationKey)
}
