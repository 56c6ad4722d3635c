package authflow

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no record exists for the given key.
var ErrNotFound = errors.New("authflow: not found")

// AuthStateKey is the well-known key the flow keeps its in-flight login
// attempt under. The slot is deliberately singular: one attempt per client,
// and a new attempt overwrites the old.
const AuthStateKey = "current"

// AuthStateStore persists the in-flight login attempt. The flow treats read
// and write failures as fatal to the attempt, so implementations should not
// paper over storage errors.
type AuthStateStore interface {
	// Set writes state under key, overwriting any existing value.
	Set(ctx context.Context, key string, state AuthState) error

	// Get returns the state stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*AuthState, error)

	// Remove deletes the state under key. Removing a missing key is not an
	// error.
	Remove(ctx context.Context, key string) error
}

// SessionStore persists the durable user session, one record per client id.
type SessionStore interface {
	// Save upserts the record keyed by its client id. Stores assign the
	// record's ID on first save and keep it stable afterwards.
	Save(ctx context.Context, session StoredUserSession) error

	// Get returns the session for clientID, or ErrNotFound.
	Get(ctx context.Context, clientID string) (*StoredUserSession, error)

	// Remove deletes the session for clientID. Removing a missing id is
	// not an error.
	Remove(ctx context.Context, clientID string) error
}
