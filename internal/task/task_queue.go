package task

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type pendingEntry struct {
	id    uuid.UUID
	score float64
	seq   uint64
}

// MemoryPendingSet implements PendingSet in process memory. Entries with the
// same score keep insertion order.
type MemoryPendingSet struct {
	mu      sync.Mutex
	entries []pendingEntry
	index   map[uuid.UUID]pendingEntry
	seq     uint64
}

// Ensure MemoryPendingSet implements PendingSet
var _ PendingSet = (*MemoryPendingSet)(nil)

// NewMemoryPendingSet creates an empty in-memory pending set.
func NewMemoryPendingSet() *MemoryPendingSet {
	return &MemoryPendingSet{
		index: make(map[uuid.UUID]pendingEntry),
	}
}

func compareEntries(a, b pendingEntry) int {
	if c := cmp.Compare(a.score, b.score); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// Add inserts id at its ordered position unless it is already present.
func (s *MemoryPendingSet) Add(ctx context.Context, id uuid.UUID, score float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[id]; exists {
		return false, nil
	}

	s.seq++
	e := pendingEntry{id: id, score: score, seq: s.seq}
	pos, _ := slices.BinarySearchFunc(s.entries, e, compareEntries)
	s.entries = slices.Insert(s.entries, pos, e)
	s.index[id] = e
	return true, nil
}

// PopMin removes the head of the ordering.
func (s *MemoryPendingSet) PopMin(ctx context.Context) (uuid.UUID, float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return uuid.Nil, 0, false, nil
	}

	head := s.entries[0]
	s.entries = slices.Delete(s.entries, 0, 1)
	delete(s.index, head.id)
	return head.id, head.score, true, nil
}

// Remove deletes id if present.
func (s *MemoryPendingSet) Remove(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return nil
	}

	if pos, found := slices.BinarySearchFunc(s.entries, e, compareEntries); found {
		s.entries = slices.Delete(s.entries, pos, pos+1)
	}
	delete(s.index, id)
	return nil
}

// Contains reports whether id is queued.
func (s *MemoryPendingSet) Contains(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.index[id]
	return ok, nil
}

// Len returns the number of queued ids.
func (s *MemoryPendingSet) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}
