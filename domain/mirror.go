package domain

import "time"

// MirrorEntry is one participant's denormalized view of a conversation,
// used to render the conversation list. Two entries exist per conversation,
// one per participant, and they converge after every settled send.
// Display fields are a cached snapshot of the counterparty's profile and
// may be stale until the reconciler refreshes them.
type MirrorEntry struct {
	ConversationKey ConversationKey
	OtherID         string
	OtherName       string
	OtherAvatarURL  string
	LastMessageText string
	UpdatedAt       time.Time
}

// Supersedes reports whether e should replace stored under
// last-writer-wins rules. An equal timestamp does not supersede.
func (e MirrorEntry) Supersedes(stored MirrorEntry) bool {
	return e.UpdatedAt.After(stored.UpdatedAt)
}
