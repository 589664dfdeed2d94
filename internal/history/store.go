// File: internal/history/store.go
// Description: Bounded, append-only record of past orchestration outcomes.
// Single logical writer (the orchestrator's finalize step), many readers.

package history

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Store is a bounded FIFO collection of history entries. When the bound is
// exceeded the oldest entries are evicted first. All methods are safe for
// concurrent use; readers always observe a consistent snapshot.
type Store struct {
	mu       sync.RWMutex
	entries  []schemas.HistoryEntry
	capacity int
	log      *zap.Logger
}

// New creates a history store holding at most capacity entries.
func New(capacity int, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make([]schemas.HistoryEntry, 0, capacity),
		capacity: capacity,
		log:      logger.Named("history"),
	}
}

// Append adds an entry to the tail, evicting from the head if the store is
// full. Invariant: len(entries) <= capacity at all times.
func (s *Store) Append(entry schemas.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.capacity; over > 0 {
		evicted := make([]schemas.HistoryEntry, len(s.entries)-over, s.capacity)
		copy(evicted, s.entries[over:])
		s.entries = evicted
		s.log.Debug("Evicted oldest history entries", zap.Int("count", over))
	}
}

// Len reports the current number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Capacity reports the configured bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Snapshot returns a copy of all entries in insertion order. Mutating the
// returned slice has no effect on the store.
func (s *Store) Snapshot() []schemas.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schemas.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Query returns a copy of the entries matching the predicate, in insertion
// order. The store itself is never exposed for mutation.
func (s *Store) Query(pred func(schemas.HistoryEntry) bool) []schemas.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schemas.HistoryEntry
	for _, e := range s.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// HighScoring returns the entries whose score is at or above min.
func (s *Store) HighScoring(min float64) []schemas.HistoryEntry {
	return s.Query(func(e schemas.HistoryEntry) bool { return e.Score >= min })
}

// CountAbove reports how many stored entries score at or above min.
func (s *Store) CountAbove(min float64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Score >= min {
			n++
		}
	}
	return n
}
