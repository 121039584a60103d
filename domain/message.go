package domain

import (
	"time"
)

// Message is an immutable chat event inside one conversation.
// ServerTimestamp and Seq are assigned by the message log at append time;
// client clocks never participate in ordering.
type Message struct {
	ConversationKey ConversationKey
	SenderID        string
	Text            string
	ServerTimestamp time.Time
	Seq             uint64
	ClientMessageID string // caller-supplied, used for idempotent append
}

// Cursor points just after a position in a conversation's total order.
// The zero Cursor is before the first message.
type Cursor struct {
	Timestamp time.Time
	Seq       uint64
}

// Cursor returns the position of the message itself.
func (m Message) Cursor() Cursor {
	return Cursor{Timestamp: m.ServerTimestamp, Seq: m.Seq}
}

// Before reports whether c sorts strictly before other.
func (c Cursor) Before(other Cursor) bool {
	if c.Timestamp.Equal(other.Timestamp) {
		return c.Seq < other.Seq
	}
	return c.Timestamp.Before(other.Timestamp)
}
