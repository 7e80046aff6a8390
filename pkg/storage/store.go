package storage

import (
	"sync"

	"github.com/strata-db/strata/pkg/value"
)

// Store is the sharded, version-chained keyspace shared by every primitive
// and every branch. It knows nothing about transactions, WAL durability, or
// conflict detection — those are the concurrency controller's job. Store
// only guarantees that once a Version is appended to a chain, it is
// visible to every subsequent read and the chain never forgets it.
type Store struct {
	mu     sync.RWMutex
	shards map[string]*shard
}

// New returns an empty Store.
func New() *Store {
	return &Store{shards: make(map[string]*shard)}
}

func (s *Store) shardFor(branch string) *shard {
	s.mu.RLock()
	sh, ok := s.shards[branch]
	s.mu.RUnlock()
	if ok {
		return sh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.shards[branch]; ok {
		return sh
	}
	sh = newShard()
	s.shards[branch] = sh
	return sh
}

// shardIfExists returns the branch's shard without creating one, for
// read-only paths against branches that may never have been written to.
func (s *Store) shardIfExists(branch string) (*shard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shards[branch]
	return sh, ok
}

// Get returns the current (non-tombstone) value for key.
func (s *Store) Get(key Key) (value.Versioned, bool) {
	sh, ok := s.shardIfExists(key.Branch)
	if !ok {
		return value.Versioned{}, false
	}
	c, ok := sh.get(key.chainKey())
	if !ok {
		return value.Versioned{}, false
	}
	return c.latest()
}

// GetAt returns the value visible to a reader whose snapshot is `at` — the
// newest entry with Version <= at, reported as absent if that entry is a
// tombstone.
func (s *Store) GetAt(key Key, at value.Version) (value.Versioned, bool) {
	sh, ok := s.shardIfExists(key.Branch)
	if !ok {
		return value.Versioned{}, false
	}
	c, ok := sh.get(key.chainKey())
	if !ok {
		return value.Versioned{}, false
	}
	return c.at(at)
}

// History returns every version ever appended for key, oldest first,
// including tombstones.
func (s *Store) History(key Key) []value.Versioned {
	sh, ok := s.shardIfExists(key.Branch)
	if !ok {
		return nil
	}
	c, ok := sh.get(key.chainKey())
	if !ok {
		return nil
	}
	return c.history()
}

// LatestVersion returns the newest Version appended to key's chain
// (tombstone or not), used by the concurrency controller to compute the
// next monotonic Version on a write.
func (s *Store) LatestVersion(key Key) (value.Version, bool) {
	sh, ok := s.shardIfExists(key.Branch)
	if !ok {
		return value.Version{}, false
	}
	c, ok := sh.get(key.chainKey())
	if !ok {
		return value.Version{}, false
	}
	v, ok := c.latestAny()
	if !ok {
		return value.Version{}, false
	}
	return v.Version, true
}

// Put appends a new live entry to key's chain, stamped with version.
func (s *Store) Put(key Key, val value.Value, version value.Version, timestamp int64) {
	sh := s.shardFor(key.Branch)
	c := sh.getOrCreate(key.chainKey())
	c.append(value.Versioned{Value: val, Version: version, Timestamp: timestamp})
}

// Delete appends a tombstone entry to key's chain, stamped with version.
func (s *Store) Delete(key Key, version value.Version, timestamp int64) {
	sh := s.shardFor(key.Branch)
	c := sh.getOrCreate(key.chainKey())
	c.append(value.Versioned{Version: version, Timestamp: timestamp, Deleted: true})
}

// ScanEntry is one (Key, value) pair returned by ScanPrefix.
type ScanEntry struct {
	Key   Key
	Entry value.Versioned
}

// ScanPrefix returns the live entries in branch whose UserKey, prefixed by
// tag, starts with userPrefix, ordered by chain key ascending.
func (s *Store) ScanPrefix(branch string, tag TypeTag, userPrefix string) []ScanEntry {
	sh, ok := s.shardIfExists(branch)
	if !ok {
		return nil
	}
	prefix := string([]byte{byte(tag)}) + userPrefix
	var out []ScanEntry
	for _, ck := range sh.keysWithPrefix(prefix) {
		c, ok := sh.get(ck)
		if !ok {
			continue
		}
		v, ok := c.latest()
		if !ok {
			continue
		}
		out = append(out, ScanEntry{
			Key:   Key{Branch: branch, Tag: tag, UserKey: ck[1:]},
			Entry: v,
		})
	}
	return out
}

// Write is one pending mutation in a batch: either a Put (Deleted=false,
// Value set) or a Delete (Deleted=true).
type Write struct {
	Key     Key
	Value   value.Value
	Deleted bool
}

// ApplyBatch appends every write in the batch, all stamped with the same
// version and timestamp. Batches commit atomically from the caller's
// perspective because the concurrency controller holds the commit path
// serialized — Store itself just appends in
// order without any two-phase bookkeeping.
func (s *Store) ApplyBatch(writes []Write, version value.Version, timestamp int64) {
	for _, w := range writes {
		if w.Deleted {
			s.Delete(w.Key, version, timestamp)
		} else {
			s.Put(w.Key, w.Value, version, timestamp)
		}
	}
}

// Branches returns every branch name that currently has a shard, i.e. has
// been written to at least once.
func (s *Store) Branches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.shards))
	for b := range s.shards {
		out = append(out, b)
	}
	return out
}

// ForEachLatest calls fn once per live (non-tombstoned) key across every
// branch, used by snapshot creation — a snapshot only needs to capture
// current values, not full history.
func (s *Store) ForEachLatest(fn func(branch string, key Key, v value.Versioned)) {
	for _, branch := range s.Branches() {
		sh, ok := s.shardIfExists(branch)
		if !ok {
			continue
		}
		sh.mu.RLock()
		chains := make(map[string]*chain, len(sh.chains))
		for ck, c := range sh.chains {
			chains[ck] = c
		}
		sh.mu.RUnlock()

		for ck, c := range chains {
			v, ok := c.latest()
			if !ok {
				continue
			}
			fn(branch, Key{Branch: branch, Tag: TypeTag(ck[0]), UserKey: ck[1:]}, v)
		}
	}
}

// LoadSnapshotEntry seeds key's chain with v as its sole initial entry, used
// when restoring from a snapshot before WAL replay continues the chain.
func (s *Store) LoadSnapshotEntry(key Key, v value.Versioned) {
	sh := s.shardFor(key.Branch)
	c := sh.getOrCreate(key.chainKey())
	c.append(v)
}
