package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alimgiray/sentinel/internal/models"
)

// CommitRecord is one commit made against a MemoryStore.
type CommitRecord struct {
	Message string
	Keys    []string
}

// MemoryStore keeps documents in a map. Used by tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string][]byte
	staged    map[string]bool
	commits   []CommitRecord
	refreshes int
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string][]byte),
		staged: make(map[string]bool),
	}
}

// Seed stores a committed document without recording a commit.
func (s *MemoryStore) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), data...)
}

func (s *MemoryStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[key]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", key, models.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Write(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), data...)
	s.staged[key] = true
	return nil
}

func (s *MemoryStore) Commit(ctx context.Context, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.staged) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(s.staged))
	for k := range s.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.commits = append(s.commits, CommitRecord{Message: message, Keys: keys})
	s.staged = make(map[string]bool)
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

// Commits returns the commits made so far.
func (s *MemoryStore) Commits() []CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CommitRecord(nil), s.commits...)
}

// Refreshes counts Refresh calls.
func (s *MemoryStore) Refreshes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshes
}
