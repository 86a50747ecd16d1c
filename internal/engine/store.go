package engine

import (
	"sync"

	"envman/internal/model"
)

// store is the in-memory canonical copy of the gateway's records, kept in
// gateway order. All methods are safe for concurrent use.
type store struct {
	mu      sync.RWMutex
	records []model.VariableRecord
	index   map[string]int
}

func newStore() *store {
	return &store{index: make(map[string]int)}
}

// Replace swaps in a freshly listed set of records.
func (s *store) Replace(records []model.VariableRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]model.VariableRecord(nil), records...)
	s.reindex()
}

// Get returns the live record for id.
func (s *store) Get(id string) (model.VariableRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.VariableRecord{}, false
	}
	return s.records[i], true
}

// Put overwrites an existing record in place. It reports false when the
// record is no longer present.
func (s *store) Put(r model.VariableRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[r.ID]
	if !ok {
		return false
	}
	s.records[i] = r
	return true
}

// Append adds r at the end, or overwrites it in place if already present.
func (s *store) Append(r model.VariableRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[r.ID]; ok {
		s.records[i] = r
		return
	}
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r)
}

// Remove drops id, keeping the order of the rest.
func (s *store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.reindex()
	return true
}

// Snapshot returns a copy of all records in order.
func (s *store) Snapshot() []model.VariableRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.VariableRecord(nil), s.records...)
}

func (s *store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *store) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

// recordLocks serializes writes per record id.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*recordLock)}
}

// Lock blocks until id is free and returns the matching unlock func.
func (l *recordLocks) Lock(id string) func() {
	l.mu.Lock()
	rl, ok := l.locks[id]
	if !ok {
		rl = &recordLock{}
		l.locks[id] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
