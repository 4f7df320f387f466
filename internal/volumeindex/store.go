package volumeindex

import (
	"sync/atomic"
	"time"
)

// Entry binds a CephFS subvolume path to the pod mounting it.
// JSON names match the cache file format.
type Entry struct {
	SubvolumePath string `json:"subvolumepath"`
	Namespace     string `json:"namespace"`
	Name          string `json:"name"`
	Node          string `json:"node"`
}

// Mapping is keyed by subvolume path. A published Mapping is never mutated.
type Mapping map[string]Entry

type snapshot struct {
	entries Mapping
	builtAt time.Time
}

// Store publishes the current Mapping to concurrent readers. Writers swap
// in a complete Mapping, so readers see either the old or the new one.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore returns an empty Store that reports not ready until the first Swap.
func NewStore() *Store {
	return &Store{}
}

// Swap publishes m. The caller must not modify m afterwards.
func (s *Store) Swap(m Mapping) {
	if m == nil {
		m = Mapping{}
	}
	s.current.Store(&snapshot{entries: m, builtAt: time.Now()})
}

// Lookup returns the entry for a subvolume path.
func (s *Store) Lookup(path string) (Entry, bool) {
	snap := s.current.Load()
	if snap == nil {
		return Entry{}, false
	}
	e, ok := snap.entries[path]
	return e, ok
}

// Snapshot returns the published Mapping. It must be treated as read-only.
func (s *Store) Snapshot() Mapping {
	snap := s.current.Load()
	if snap == nil {
		return Mapping{}
	}
	return snap.entries
}

// Len returns the number of published entries.
func (s *Store) Len() int {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.entries)
}

// Ready reports whether a mapping has been published.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// BuiltAt returns when the current mapping was published.
func (s *Store) BuiltAt() time.Time {
	snap := s.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.builtAt
}
