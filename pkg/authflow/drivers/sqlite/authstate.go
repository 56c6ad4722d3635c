package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/loginkit/pkg/authflow"
)

type authStatesRepo struct {
	db *sql.DB
}

func (r *authStatesRepo) Set(ctx context.Context, key string, state authflow.AuthState) error {
	var mfa sql.NullString
	if state.MFA != nil {
		mfa = sql.NullString{String: string(*state.MFA), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_states (key, state, nonce, code_verifier, mfa, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			state = excluded.state,
			nonce = excluded.nonce,
			code_verifier = excluded.code_verifier,
			mfa = excluded.mfa,
			updated_at = excluded.updated_at
	`, key, state.State, state.Nonce, state.CodeVerifier, mfa, time.Now().UTC())

	return err
}

func (r *authStatesRepo) Get(ctx context.Context, key string) (*authflow.AuthState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT state, nonce, code_verifier, mfa
		FROM auth_states
		WHERE key = ?
	`, key)

	var (
		state authflow.AuthState
		mfa   sql.NullString
	)
	if err := row.Scan(&state.State, &state.Nonce, &state.CodeVerifier, &mfa); err != nil {
		return nil, mapNotFound(err)
	}

	if mfa.Valid {
		value := authflow.MFAType(mfa.String)
		state.MFA = &value
	}

	return &state, nil
}

func (r *authStatesRepo) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_states WHERE key = ?`, key)
	return err
}
