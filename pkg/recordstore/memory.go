package recordstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. It is used in development and tests.
type MemoryStore struct {
	records map[string]*Record
	lock    sync.RWMutex
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Exists reports whether the user already has a record with this file name
func (s *MemoryStore) Exists(ctx context.Context, userID, fileName string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	return s.findByName(userID, fileName) != nil, nil
}

// Insert adds a record; the check and the write happen under one lock
func (s *MemoryStore) Insert(ctx context.Context, rec *Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.findByName(rec.UserID, rec.FileName) != nil {
		return ErrDuplicate
	}

	stored := *rec
	s.records[rec.ID] = &stored
	return nil
}

// List returns the user's records, newest first
func (s *MemoryStore) List(ctx context.Context, userID string) ([]*Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	records := make([]*Record, 0)
	for _, rec := range s.records {
		if rec.UserID == userID {
			copied := *rec
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].UploadedAt.After(records[j].UploadedAt)
	})
	return records, nil
}

// Get retrieves a record owned by the user
func (s *MemoryStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rec, exists := s.records[id]
	if !exists || rec.UserID != userID {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// Delete removes a record owned by the user
func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}

	rec, exists := s.records[id]
	if !exists || rec.UserID != userID {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Close closes the store and drops all records
func (s *MemoryStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	s.records = nil
	return nil
}

func (s *MemoryStore) findByName(userID, fileName string) *Record {
	for _, rec := range s.records {
		if rec.UserID == userID && rec.FileName == fileName {
			return rec
		}
	}
	return nil
}
