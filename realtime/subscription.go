package realtime

import (
	"sync"

	"chat-sync/domain"
)

// MessageSubscription is one subscriber's view of a conversation stream.
// Snapshot holds the messages that existed at subscription time (after the
// requested cursor); Updates then carries strictly newer messages in log
// order. When the subscriber falls behind and its buffer fills, the
// subscription is failed with ErrSubscriptionOverflow and Done is closed;
// the client is expected to resubscribe and take a fresh snapshot.
type MessageSubscription struct {
	id       string
	key      domain.ConversationKey
	Snapshot []domain.Message

	mu      sync.Mutex
	next    domain.Cursor
	updates chan domain.Message
	done    chan struct{}
	once    sync.Once
	err     error
}

func (s *MessageSubscription) Updates() <-chan domain.Message { return s.updates }
func (s *MessageSubscription) Done() <-chan struct{}          { return s.done }

// Err reports why the subscription ended, nil after a plain Cancel.
func (s *MessageSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver enqueues the message unless it was already covered by the
// snapshot or an earlier event. Reports false when the buffer is full.
func (s *MessageSubscription) deliver(msg domain.Message) bool {
	s.mu.Lock()
	if !s.next.Before(msg.Cursor()) {
		s.mu.Unlock()
		return true
	}
	s.next = msg.Cursor()
	s.mu.Unlock()

	select {
	case <-s.done:
		return true
	case s.updates <- msg:
		return true
	default:
		return false
	}
}

func (s *MessageSubscription) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// MirrorSubscription streams one participant's conversation list: the
// current entries as a snapshot, then every summary change. Per
// conversation, an update older than the last delivered one is dropped, so
// the subscriber converges on the same last-writer-wins state as the store.
type MirrorSubscription struct {
	id       string
	ownerID  string
	Snapshot []domain.MirrorEntry

	mu       sync.Mutex
	lastSeen map[domain.ConversationKey]domain.MirrorEntry
	updates  chan domain.MirrorEntry
	done     chan struct{}
	once     sync.Once
	err      error
}

func (s *MirrorSubscription) Updates() <-chan domain.MirrorEntry { return s.updates }
func (s *MirrorSubscription) Done() <-chan struct{}              { return s.done }

func (s *MirrorSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *MirrorSubscription) deliver(entry domain.MirrorEntry) bool {
	s.mu.Lock()
	if seen, ok := s.lastSeen[entry.ConversationKey]; ok {
		if seen.UpdatedAt.After(entry.UpdatedAt) || seen == entry {
			s.mu.Unlock()
			return true
		}
	}
	s.lastSeen[entry.ConversationKey] = entry
	s.mu.Unlock()

	select {
	case <-s.done:
		return true
	case s.updates <- entry:
		return true
	default:
		return false
	}
}

func (s *MirrorSubscription) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}
