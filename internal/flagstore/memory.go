package flagstore

import (
	"context"
	"sort"
	"sync"

	"github.com/qs3c/regflow_go_server/internal/model"
)

// MemoryStore is process-local; flags are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[model.ReportKey]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[model.ReportKey]bool)}
}

func (s *MemoryStore) Get(_ context.Context, key model.ReportKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[key], nil
}

func (s *MemoryStore) Set(_ context.Context, key model.ReportKey, advanced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = advanced
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key model.ReportKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.flags))
	for k, v := range s.flags {
		entries = append(entries, Entry{Key: k, Advanced: v})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.CycleID != entries[j].Key.CycleID {
			return entries[i].Key.CycleID < entries[j].Key.CycleID
		}
		return entries[i].Key.ReportID < entries[j].Key.ReportID
	})
	return entries, nil
}
