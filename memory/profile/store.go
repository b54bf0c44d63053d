package profile

import (
	"context"
	"sync"

	"github.com/marcolabs/marco-go-sdk/core"
)

// Store persists traveler profiles keyed by scope.
//
// Update runs fn against the current profile under a per-scope lock so
// concurrent read-modify-write cycles cannot drop each other's fields.
// fn returns whether it changed the profile; unchanged profiles are not
// rewritten.
type Store interface {
	Get(ctx context.Context, scope core.Scope) (*Profile, error)
	Update(ctx context.Context, scope core.Scope, fn func(p *Profile) bool) error
	Close() error
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Get returns a copy of the stored profile, or an empty profile when
// nothing has been saved for the scope yet.
func (s *MemoryStore) Get(ctx context.Context, scope core.Scope) (*Profile, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[scope.Key()]
	if !ok {
		return &Profile{}, nil
	}
	return clone(stored), nil
}

// Update applies fn to the stored profile while holding the store lock.
func (s *MemoryStore) Update(ctx context.Context, scope core.Scope, fn func(p *Profile) bool) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[scope.Key()]
	if !ok {
		current = &Profile{}
	}
	working := clone(current)
	if !fn(working) {
		return nil
	}
	s.profiles[scope.Key()] = working
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func clone(p *Profile) *Profile {
	c := *p
	c.Interests = append([]string(nil), p.Interests...)
	c.PastTrips = append([]PastTrip(nil), p.PastTrips...)
	if p.Travelers != nil {
		v := *p.Travelers
		c.Travelers = &v
	}
	return &c
}
