package runtime

import (
	"sync"

	"chat-sync/domain"
)

// keyLocks serializes appends per conversation. One mutex per key makes
// server timestamp and sequence assignment a true total order inside a
// conversation while different conversations proceed in parallel.
type keyLocks struct {
	mu    sync.Mutex
	locks map[domain.ConversationKey]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[domain.ConversationKey]*sync.Mutex)}
}

// acquire blocks until the conversation's serialization point is held and
// returns the release function.
func (l *keyLocks) acquire(key domain.ConversationKey) func() {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
