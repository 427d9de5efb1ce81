package usecases

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/risk"
)

// Snapshot is one station's published state: the series window, its
// assessment and provenance, produced by a single refresh cycle. Snapshots
// are immutable; a cycle replaces them wholesale.
type Snapshot struct {
	Station    entities.Station  `json:"station"`
	Records    []entities.Record `json:"records"`
	Assessment risk.Assessment   `json:"assessment"`
	Source     entities.Source   `json:"source"`
	FetchedAt  time.Time         `json:"fetchedAt"`
	Cycle      uint64            `json:"-"`
}

// SnapshotStore holds the current snapshot per station. Cycles are numbered
// monotonically and Apply enforces last-cycle-wins: a slow in-flight refresh
// finishing after a newer one has published is discarded, so the dashboard
// can never regress to older data.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	cycle     atomic.Uint64
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]Snapshot)}
}

// NextCycle allocates the next refresh cycle number.
func (s *SnapshotStore) NextCycle() uint64 {
	return s.cycle.Add(1)
}

// Apply publishes a snapshot unless a newer cycle already published one for
// the same station. Returns whether the snapshot was accepted.
func (s *SnapshotStore) Apply(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.snapshots[snap.Station.ID]
	if ok && current.Cycle > snap.Cycle {
		return false
	}
	s.snapshots[snap.Station.ID] = snap
	return true
}

// Get returns the current snapshot for a station.
func (s *SnapshotStore) Get(stationID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[stationID]
	return snap, ok
}

// All returns the current snapshot of every station that has one.
func (s *SnapshotStore) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}
