package authflow

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/loginkit/pkg/idx"
)

// ============================================================================
// In-Memory Auth State Store
// ============================================================================

// MemoryAuthStateStore keeps login attempts in process memory. Suited to
// tests and short-lived tools; attempts do not survive a restart. Safe for
// concurrent use.
type MemoryAuthStateStore struct {
	mu     sync.RWMutex
	states map[string]AuthState
}

// NewMemoryAuthStateStore returns an empty in-memory attempt store.
func NewMemoryAuthStateStore() *MemoryAuthStateStore {
	return &MemoryAuthStateStore{
		states: make(map[string]AuthState),
	}
}

func (s *MemoryAuthStateStore) Set(ctx context.Context, key string, state AuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[key] = state
	return nil
}

func (s *MemoryAuthStateStore) Get(ctx context.Context, key string) (*AuthState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := state
	return &out, nil
}

func (s *MemoryAuthStateStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, key)
	return nil
}

// ============================================================================
// In-Memory Session Store
// ============================================================================

// MemorySessionStore keeps user sessions in process memory. Safe for
// concurrent use.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]StoredUserSession
}

// NewMemorySessionStore returns an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]StoredUserSession),
	}
}

func (s *MemorySessionStore) Save(ctx context.Context, session StoredUserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The row identity survives updates for the same client id.
	if existing, ok := s.sessions[session.ClientID]; ok {
		session.ID = existing.ID
	} else if session.ID.IsZero() {
		session.ID = idx.MustNew()
	}

	s.sessions[session.ClientID] = session
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, clientID string) (*StoredUserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[clientID]
	if !ok {
		return nil, ErrNotFound
	}

	out := session
	return &out, nil
}

func (s *MemorySessionStore) Remove(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, clientID)
	return nil
}
