package persona

import "strings"

// Store exposes persona retrieval for HTTP handlers and the audience scheduler.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	FindByName(name string) (Persona, bool)
}

// MemoryStore implements Store with an immutable in-memory slice.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the catalogue in declaration order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// FindByName looks up a persona by display name, ignoring case.
func (s *MemoryStore) FindByName(name string) (Persona, bool) {
	for _, item := range s.items {
		if strings.EqualFold(item.Name, name) {
			return item, true
		}
	}
	return Persona{}, false
}
