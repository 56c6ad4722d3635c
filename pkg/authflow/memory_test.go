package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAuthStateStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set get round trip", func(t *testing.T) {
		store := NewMemoryAuthStateStore()

		mfa := MFATypeOTP
		state := AuthState{
			State:        "state-1",
			Nonce:        "nonce-1",
			CodeVerifier: "verifier-1",
			MFA:          &mfa,
		}
		require.NoError(t, store.Set(ctx, AuthStateKey, state))

		got, err := store.Get(ctx, AuthStateKey)
		require.NoError(t, err)
		require.Equal(t, state, *got)
	})

	t.Run("get missing key", func(t *testing.T) {
		store := NewMemoryAuthStateStore()

		_, err := store.Get(ctx, AuthStateKey)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		store := NewMemoryAuthStateStore()

		require.NoError(t, store.Set(ctx, AuthStateKey, AuthState{State: "first"}))
		require.NoError(t, store.Set(ctx, AuthStateKey, AuthState{State: "second"}))

		got, err := store.Get(ctx, AuthStateKey)
		require.NoError(t, err)
		require.Equal(t, "second", got.State)
	})

	t.Run("remove", func(t *testing.T) {
		store := NewMemoryAuthStateStore()

		require.NoError(t, store.Set(ctx, AuthStateKey, AuthState{State: "state-1"}))
		require.NoError(t, store.Remove(ctx, AuthStateKey))

		_, err := store.Get(ctx, AuthStateKey)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove missing key is not an error", func(t *testing.T) {
		store := NewMemoryAuthStateStore()
		require.NoError(t, store.Remove(ctx, AuthStateKey))
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		store := NewMemoryAuthStateStore()

		require.NoError(t, store.Set(ctx, AuthStateKey, AuthState{State: "state-1"}))

		got, err := store.Get(ctx, AuthStateKey)
		require.NoError(t, err)
		got.State = "mutated"

		again, err := store.Get(ctx, AuthStateKey)
		require.NoError(t, err)
		require.Equal(t, "state-1", again.State)
	})
}

func TestMemorySessionStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	record := func() StoredUserSession {
		return StoredUserSession{
			ClientID: "client-1",
			Tokens: TokenSet{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				TokenType:    "Bearer",
				ExpiresIn:    3600,
			},
			UpdatedAt: time.Now().UTC(),
		}
	}

	t.Run("save assigns an id", func(t *testing.T) {
		store := NewMemorySessionStore()

		require.NoError(t, store.Save(ctx, record()))

		got, err := store.Get(ctx, "client-1")
		require.NoError(t, err)
		require.False(t, got.ID.IsZero())
		require.Equal(t, "access-1", got.Tokens.AccessToken)
	})

	t.Run("save keeps the id stable across updates", func(t *testing.T) {
		store := NewMemorySessionStore()

		require.NoError(t, store.Save(ctx, record()))
		first, err := store.Get(ctx, "client-1")
		require.NoError(t, err)

		updated := record()
		updated.Tokens.AccessToken = "access-2"
		require.NoError(t, store.Save(ctx, updated))

		second, err := store.Get(ctx, "client-1")
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)
		require.Equal(t, "access-2", second.Tokens.AccessToken)
	})

	t.Run("get missing client", func(t *testing.T) {
		store := NewMemorySessionStore()

		_, err := store.Get(ctx, "client-1")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove", func(t *testing.T) {
		store := NewMemorySessionStore()

		require.NoError(t, store.Save(ctx, record()))
		require.NoError(t, store.Remove(ctx, "client-1"))

		_, err := store.Get(ctx, "client-1")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove missing client is not an error", func(t *testing.T) {
		store := NewMemorySessionStore()
		require.NoError(t, store.Remove(ctx, "client-1"))
	})
}
