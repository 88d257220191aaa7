package sync

import (
	"sync"
)

// KeyedMutex provides fine-grained locking by resource key. Operations on
// distinct keys never contend with each other; operations on the same key are
// fully serialized. Entries are reference counted and released when the last
// holder unlocks, so the table stays bounded by the number of in-flight keys.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

// Lock acquires the lock for key, blocking until it is available.
func (m *KeyedMutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not held panics,
// mirroring sync.Mutex semantics.
func (m *KeyedMutex) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		panic("sync: unlock of unheld keyed mutex: " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}
