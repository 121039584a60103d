// Package domain contains core concepts of the sync engine.
// Conversations, messages and mirrors are value types validated here;
// persistence and delivery live in other packages.
package domain

import (
	"strings"
	"time"

	"chat-sync/errors"
)

// keySeparator joins the two participant ids inside a ConversationKey.
// Participant ids are not allowed to contain it.
const keySeparator = "_"

// ConversationKey is the canonical identifier of a two-party conversation.
// It is derived from the unordered participant pair, so both sides always
// compute the same key. No surrogate id exists besides it.
type ConversationKey string

// DeriveKey builds the canonical key for the pair (a, b).
// The derivation is symmetric: DeriveKey(a, b) == DeriveKey(b, a).
func DeriveKey(a, b string) (ConversationKey, error) {
	if a == "" || b == "" || a == b {
		return "", errors.ErrInvalidParticipant
	}
	if strings.Contains(a, keySeparator) || strings.Contains(b, keySeparator) {
		return "", errors.ErrInvalidParticipant
	}
	if a < b {
		return ConversationKey(a + keySeparator + b), nil
	}
	return ConversationKey(b + keySeparator + a), nil
}

// Participants returns the two ids encoded in the key, in key order.
func (k ConversationKey) Participants() (string, string, error) {
	parts := strings.Split(string(k), keySeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.ErrMalformedKey
	}
	return parts[0], parts[1], nil
}

// Split recovers the counterparty id given one known participant.
func (k ConversationKey) Split(knownID string) (string, error) {
	a, b, err := k.Participants()
	if err != nil {
		return "", err
	}
	switch knownID {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", errors.ErrMalformedKey
	}
}

// Conversation is the shared record of a two-party exchange.
// It is created lazily on first contact and never deleted.
type Conversation struct {
	Key             ConversationKey
	ParticipantA    string // smaller id, matches key order
	ParticipantB    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastMessageText string
}

// NewConversation builds the record for a freshly derived key.
func NewConversation(key ConversationKey, now time.Time) (Conversation, error) {
	a, b, err := key.Participants()
	if err != nil {
		return Conversation{}, err
	}
	return Conversation{
		Key:          key,
		ParticipantA: a,
		ParticipantB: b,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
