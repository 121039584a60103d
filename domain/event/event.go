// Package event defines the domain events emitted once a send settles.
// Events are routed by the fanout worker to realtime subscribers and
// permanent sinks; they carry fully-formed domain values, never ids alone.
package event

import (
	"chat-sync/domain"
)

type DomainEvent interface {
	Key() domain.ConversationKey
}

// MessageAppended is emitted when a message becomes durable in the log.
type MessageAppended struct {
	Message domain.Message
}

func (e MessageAppended) Key() domain.ConversationKey {
	return e.Message.ConversationKey
}

// MirrorUpdated is emitted when one participant's conversation summary
// changes, either by a send settling or by the reconciler repairing a lag.
type MirrorUpdated struct {
	OwnerID string
	Entry   domain.MirrorEntry
}

func (e MirrorUpdated) Key() domain.ConversationKey {
	return e.Entry.ConversationKey
}
