package locking

import (
	"sync"

	"github.com/google/uuid"
)

// Keyed hands out one mutex per id and forgets the id once the last holder
// releases it, so a long-lived process does not accumulate an entry for
// every booking and resource it ever touched. An entry is only removed when
// no goroutine holds or awaits it, which keeps mutual exclusion intact
// across the removal.
type Keyed struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	sync.Mutex
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[uuid.UUID]*entry)}
}

// Lock blocks until the id's mutex is held and returns the matching unlock.
// The unlock must be called exactly once.
func (k *Keyed) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &entry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}

// Len reports how many ids currently hold or await their lock.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
