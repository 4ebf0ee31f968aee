package usecase

import (
	"sync"

	"followq-backend/internal/queue/domain"
)

// itemLocks serializes mutations per item id. Mutations on different items
// proceed independently; a conflicting mutation on the same item either
// waits or fails with ErrConflict, depending on the configured policy.
type itemLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{entries: make(map[string]*lockEntry)}
}

// acquire takes the lock for id, returning the release func. With wait set
// it blocks until the holder releases; otherwise a held lock yields
// ErrConflict immediately.
func (l *itemLocks) acquire(id string, wait bool) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if wait {
		entry.mu.Lock()
	} else if !entry.mu.TryLock() {
		l.release(id, entry)
		return nil, domain.ErrConflict
	}

	return func() {
		entry.mu.Unlock()
		l.release(id, entry)
	}, nil
}

func (l *itemLocks) release(id string, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
	l.mu.Unlock()
}
