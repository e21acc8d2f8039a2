package face

import (
	"sort"
	"sync"
)

// Store is the keyed gallery of enrolled faces.
type Store interface {
	List() []Enrolled
	Get(label string) (Enrolled, bool)
	Put(face Enrolled) error
	Delete(label string) error
}

// MemoryStore keeps the gallery in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Enrolled
}

// NewMemoryStore returns an empty gallery.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Enrolled)}
}

// List returns a snapshot ordered by label.
func (s *MemoryStore) List() []Enrolled {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Enrolled, 0, len(s.items))
	for _, f := range s.items {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

func (s *MemoryStore) Get(label string) (Enrolled, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.items[label]
	return f, ok
}

// Put inserts or overwrites the record for face.Label.
func (s *MemoryStore) Put(face Enrolled) error {
	if face.Label == "" {
		return ErrLabelRequired
	}
	s.mu.Lock()
	s.items[face.Label] = face
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[label]; !ok {
		return ErrFaceNotFound
	}
	delete(s.items, label)
	return nil
}

func (s *MemoryStore) replace(items []Enrolled) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Enrolled, len(items))
	for _, f := range items {
		s.items[f.Label] = f
	}
}
