package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/loginkit/pkg/authflow"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed provider of the authflow persistence interfaces.
// One database file holds both the login attempt slot and the user session
// record, so a device keeps its whole auth state in a single place.
type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens (or creates) the SQLite database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// A single connection sidesteps table locking between the attempt and
	// session writers; the stores see at most one writer per key anyway.
	db.SetMaxOpenConns(1)

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AuthStates returns the login attempt store backed by this database.
func (s *Store) AuthStates() authflow.AuthStateStore { return &authStatesRepo{db: s.db} }

// Sessions returns the user session store backed by this database.
func (s *Store) Sessions() authflow.SessionStore { return &sessionsRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return authflow.ErrNotFound
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
