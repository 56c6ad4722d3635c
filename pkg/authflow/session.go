package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/slogx"
)

// expiryBuffer is subtracted from the access token lifetime so callers
// refresh slightly before the real expiry instead of racing it.
const expiryBuffer = 30 * time.Second

// Session is the live handle for an authenticated user. Its token set is the
// one piece of shared mutable state that Refresh and Logout both touch; the
// session lock serializes those mutations and is never held across a network
// call, so Logout never waits on an in-flight refresh.
type Session struct {
	clientID  string
	sessions  SessionStore
	exchanger TokenExchanger

	mu        sync.RWMutex
	tokens    TokenSet
	expiresAt time.Time
	valid     bool
}

// newSession wraps a persisted record in a live handle.
func (f *Flow) newSession(record StoredUserSession) *Session {
	return &Session{
		clientID:  record.ClientID,
		sessions:  f.sessions,
		exchanger: f.exchanger,
		tokens:    record.Tokens,
		expiresAt: sessionExpiry(record),
		valid:     true,
	}
}

// sessionExpiry derives the moment a record's access token should be treated
// as stale, expiryBuffer ahead of the advertised lifetime.
func sessionExpiry(record StoredUserSession) time.Time {
	lifetime := time.Duration(record.Tokens.ExpiresIn) * time.Second
	return record.UpdatedAt.Add(lifetime).Add(-expiryBuffer)
}

// ClientID returns the client id this session authenticates.
func (s *Session) ClientID() string { return s.clientID }

// Tokens returns a snapshot of the current token set.
func (s *Session) Tokens() TokenSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Valid reports whether the session has not been logged out.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

// Refresh redeems the refresh token for a new token set, persists it and
// returns it. Failures are always a *RefreshError.
//
// The token endpoint round-trip runs without the session lock. The commit
// afterwards re-checks validity and writes the new tokens inside one critical
// section, so a logout that lands while the request is in flight wins: the
// fresh tokens are discarded and RefreshErrorLoggedOut is returned instead of
// resurrecting the session.
func (s *Session) Refresh(ctx context.Context) (TokenSet, error) {
	// Snapshot under the read lock; the request itself must not hold it.
	s.mu.RLock()
	current := s.tokens
	valid := s.valid
	s.mu.RUnlock()

	if !valid {
		return TokenSet{}, &RefreshError{Kind: RefreshErrorLoggedOut}
	}
	if !current.HasRefreshToken() {
		return TokenSet{}, &RefreshError{Kind: RefreshErrorNoRefreshToken}
	}

	resp, err := s.exchanger.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return TokenSet{}, &RefreshError{Kind: RefreshErrorRequestFailed, err: err}
	}
	if resp.AccessToken == "" {
		return TokenSet{}, &RefreshError{
			Kind: RefreshErrorRequestFailed,
			err:  errors.New("token response is missing an access token"),
		}
	}

	// Rotation is optional server-side: keep the previous refresh and ID
	// tokens when the response omits them.
	fresh := TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IDToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}
	if fresh.IDToken == "" {
		fresh.IDToken = current.IDToken
	}
	if fresh.TokenType == "" {
		fresh.TokenType = current.TokenType
	}

	// Commit. The validity check and the store write form one critical
	// section; a logout that completed during the round-trip must not be
	// undone by writing the new tokens back.
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid {
		return TokenSet{}, &RefreshError{Kind: RefreshErrorLoggedOut}
	}

	record := StoredUserSession{
		ClientID:  s.clientID,
		Tokens:    fresh,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Save(ctx, record); err != nil {
		return TokenSet{}, &RefreshError{
			Kind: RefreshErrorRequestFailed,
			err:  fmt.Errorf("failed to persist refreshed session: %w", err),
		}
	}

	s.tokens = fresh
	s.expiresAt = sessionExpiry(record)

	slogx.FromContext(ctx).Debug("token refresh committed", "client_id", s.clientID)

	return fresh, nil
}

// Logout invalidates the session and deletes its persisted record. Both
// happen unconditionally and involve no network round-trip, so logout stays
// fast even while a refresh is suspended on the token endpoint.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valid = false

	if err := s.sessions.Remove(ctx, s.clientID); err != nil {
		return fmt.Errorf("failed to remove persisted session: %w", err)
	}

	slogx.FromContext(ctx).Info("logged out", "client_id", s.clientID)

	return nil
}

// AccessToken returns an access token that is good for at least a little
// while, refreshing first when the current one is within expiryBuffer of
// expiring. Concurrent callers may trigger overlapping refreshes; the commit
// section keeps that safe, if wasteful.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.tokens.AccessToken
	usable := s.valid && time.Now().Before(s.expiresAt)
	s.mu.RUnlock()

	if usable {
		return token, nil
	}

	fresh, err := s.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}
