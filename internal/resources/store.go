package resources

import "sync"

// Store is the in-memory ordered collection of saved resources. New
// resources go to the head; a resource with an already-present ID
// replaces the existing entry in place, so the collection never holds
// two entries with the same ID.
type Store struct {
	mu    sync.Mutex
	items []Resource
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Upsert inserts r at the head, or replaces the entry with the same ID
// in place. Reports whether an existing entry was replaced.
func (s *Store) Upsert(r Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == r.ID {
			s.items[i] = r
			return true
		}
	}
	s.items = append([]Resource{r}, s.items...)
	return false
}

// Remove deletes the entry with the given ID. Reports whether an entry
// was removed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole collection, preserving the given order.
func (s *Store) Replace(items []Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Resource(nil), items...)
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i], true
		}
	}
	return Resource{}, false
}

// List returns a copy of the collection in display order.
func (s *Store) List() []Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Resource(nil), s.items...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear drops every entry. Used when the auth session is torn down.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
