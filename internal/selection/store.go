package selection

import (
	"sync"
	"time"
)

// Selection is the donor's current gift card choice. Both fields are zero
// when nothing has been chosen; callers must treat that as "no selection
// made" rather than assuming the store is always populated.
type Selection struct {
	CardType string  `json:"cardType"`
	Amount   float64 `json:"amount"`
}

// Store holds the single in-progress selection shared between the catalog
// screen and the donation form. Set overwrites both fields under one lock
// so a reader always sees either the old pair or the new pair.
type Store struct {
	mu        sync.Mutex
	current   Selection
	updatedAt time.Time
}

func NewStore() *Store {
	return &Store{}
}

// Set records a new selection, replacing any previous one.
func (s *Store) Set(cardType string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Selection{CardType: cardType, Amount: amount}
	s.updatedAt = time.Now()
}

// Get returns the current selection and whether one has been made.
func (s *Store) Get() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current.CardType != "" && s.current.Amount > 0
}

// Clear resets the store to its empty state. Called after a successful
// submission so a stale choice cannot leak into a later donation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Selection{}
	s.updatedAt = time.Time{}
}

// ClearIfStale clears a selection that has sat untouched longer than ttl.
// Returns true if something was cleared.
func (s *Store) ClearIfStale(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.CardType == "" {
		return false
	}
	if time.Since(s.updatedAt) <= ttl {
		return false
	}
	s.current = Selection{}
	s.updatedAt = time.Time{}
	return true
}

// UpdatedAt returns when the current selection was made.
func (s *Store) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
