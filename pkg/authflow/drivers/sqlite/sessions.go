package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/loginkit/pkg/authflow"
	"github.com/aussiebroadwan/loginkit/pkg/idx"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) Save(ctx context.Context, session authflow.StoredUserSession) error {
	id := session.ID
	if id.IsZero() {
		id = idx.MustNew()
	}

	// The upsert leaves the id column alone, so the row identity survives
	// token updates for the same client.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (
			id, client_id, access_token, refresh_token, id_token,
			token_type, expires_in, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			id_token = excluded.id_token,
			token_type = excluded.token_type,
			expires_in = excluded.expires_in,
			updated_at = excluded.updated_at
	`,
		id.String(),
		session.ClientID,
		session.Tokens.AccessToken,
		mapStringNull(session.Tokens.RefreshToken),
		mapStringNull(session.Tokens.IDToken),
		session.Tokens.TokenType,
		session.Tokens.ExpiresIn,
		session.UpdatedAt.UTC(),
	)

	return err
}

func (r *sessionsRepo) Get(ctx context.Context, clientID string) (*authflow.StoredUserSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, access_token, refresh_token, id_token,
			token_type, expires_in, updated_at
		FROM user_sessions
		WHERE client_id = ?
	`, clientID)

	var (
		rawID        string
		refreshToken sql.NullString
		idToken      sql.NullString
		session      authflow.StoredUserSession
	)
	if err := row.Scan(
		&rawID,
		&session.ClientID,
		&session.Tokens.AccessToken,
		&refreshToken,
		&idToken,
		&session.Tokens.TokenType,
		&session.Tokens.ExpiresIn,
		&session.UpdatedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}

	id, err := idx.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", rawID, err)
	}

	session.ID = id
	session.Tokens.RefreshToken = mapNullString(refreshToken)
	session.Tokens.IDToken = mapNullString(idToken)

	return &session, nil
}

func (r *sessionsRepo) Remove(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE client_id = ?`, clientID)
	return err
}
