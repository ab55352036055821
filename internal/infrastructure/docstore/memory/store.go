// Package memory is the only DocumentStore implementation: uploaded document
// bytes live in process memory for the duration of one request and are
// zeroized on release. Nothing is ever written to disk.
package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/greengrowth/taxagent/internal/core/domain"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Put(id string, data []byte) error {
	if id == "" {
		return domain.WrapError(domain.ErrInvalidInput, "store document", errors.New("empty document id"))
	}
	if len(data) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "store document", errors.New("empty document payload"))
	}

	// Copy so later mutation of the caller's slice cannot change what the
	// pipeline reads.
	owned := make([]byte, len(data))
	copy(owned, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = owned
	return nil
}

func (s *Store) Get(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("no document with id %s", id))
	}
	return data, nil
}

// Release zeroizes and drops one document's bytes. Safe to call for an id
// that was already released.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(id)
}

// Clear releases every remaining document. Called on every request exit path.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.data {
		s.release(id)
	}
}

func (s *Store) release(id string) {
	data, ok := s.data[id]
	if !ok {
		return
	}
	for i := range data {
		data[i] = 0
	}
	delete(s.data, id)
}
