// internal/dialogue/locks.go
package dialogue

import "sync"

// conversationLocks serializes turn processing per conversation while
// distinct conversations proceed concurrently. Entries are reference
// counted and removed once the last holder releases, so the map does
// not grow with the total number of conversations ever seen.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the conversation's lock is held and returns the
// release function.
func (l *conversationLocks) Lock(conversationID string) func() {
	l.mu.Lock()
	e, ok := l.entries[conversationID]
	if !ok {
		e = &lockEntry{}
		l.entries[conversationID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}
