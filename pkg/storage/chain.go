package storage

import (
	"sync"

	"github.com/strata-db/strata/pkg/value"
)

// chain is the append-only version sequence for one storage key. Entries
// are ordered by Version and never removed during normal operation.
type chain struct {
	mu      sync.RWMutex
	entries []value.Versioned
}

func newChain() *chain {
	return &chain{}
}

// append adds an entry at the end of the chain. It does not check that the
// entry's Version is greater than the previous entry's.
func (c *chain) append(v value.Versioned) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, v)
}

// latest returns the newest entry if it is not a tombstone.
func (c *chain) latest() (value.Versioned, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return value.Versioned{}, false
	}
	last := c.entries[len(c.entries)-1]
	if last.Deleted {
		return value.Versioned{}, false
	}
	return last, true
}

// latestAny returns the newest entry regardless of tombstone state, used
// internally to compute the next monotonic version.
func (c *chain) latestAny() (value.Versioned, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return value.Versioned{}, false
	}
	return c.entries[len(c.entries)-1], true
}

// at returns the newest entry with Version <= snapshot, honoring
// snapshot-isolation reads; if that entry is a tombstone the key reads as
// absent, and no older live entry is returned.
func (c *chain) at(snapshot value.Version) (value.Versioned, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.Version.Uint64() <= snapshot.Uint64() {
			if e.Deleted {
				return value.Versioned{}, false
			}
			return e, true
		}
	}
	return value.Versioned{}, false
}

// history returns the full chain, ascending, copied out.
func (c *chain) history() []value.Versioned {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]value.Versioned, len(c.entries))
	copy(out, c.entries)
	return out
}
