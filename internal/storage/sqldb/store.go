// Package sqldb implements the gateway's persistence layer over SQLite.
//
// The identity provider owns user and session mutation; from the gateway's
// perspective this store is read-mostly. Every failure is classified into one
// of the storage error kinds so the error normalizer can map it to a stable
// response.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"

	"github.com/modelgate/modelgate/internal/domain"
)

// Store is the sqlx-backed implementation of domain.IdentityStore.
type Store struct {
	db *sqlx.DB
}

var _ domain.IdentityStore = (*Store)(nil)

// Config holds database connection configuration.
type Config struct {
	Driver string
	DSN    string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// New opens the database, applies connection pragmas and initializes the
// schema. Any failure here is a storage-init error.
func New(cfg Config) (*Store, error) {
	if cfg.Driver != "sqlite" {
		return nil, domain.ErrStorage(domain.ErrorKindStorageInit,
			fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, domain.ErrStorage(domain.ErrorKindStorageInit, "failed to open database", err)
	}

	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, domain.ErrStorage(domain.ErrorKindStorageInit, "failed to apply pragma", err)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, domain.ErrStorage(domain.ErrorKindStorageInit, "failed to initialize schema", err)
	}

	return store, nil
}

// NewSQLite is a convenience constructor for a SQLite store at the given path.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
id TEXT PRIMARY KEY,
email TEXT NOT NULL UNIQUE,
name TEXT NOT NULL DEFAULT '',
api_key TEXT UNIQUE,
created_at TIMESTAMP NOT NULL,
updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS sessions (
id TEXT PRIMARY KEY,
user_id TEXT NOT NULL,
token TEXT NOT NULL UNIQUE,
expires_at TIMESTAMP NOT NULL,
created_at TIMESTAMP NOT NULL,
FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying sqlx.DB for advanced operations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable, for the /api/health/db endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("database unreachable", err)
	}
	return nil
}

// FindByID looks an identity up by primary key. Returns (nil, nil) when no
// record matches.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	if id == "" {
		return nil, domain.ErrStorage(domain.ErrorKindStorageValidation, "user id must not be empty", nil)
	}

	var identity domain.Identity
	err := s.db.GetContext(ctx, &identity,
		`SELECT id, email, name, api_key FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("failed to query user by id", err)
	}
	return &identity, nil
}

// FindByAPIKey looks an identity up by its unique API key. Returns (nil, nil)
// when no record matches; the caller decides whether that is an auth failure.
func (s *Store) FindByAPIKey(ctx context.Context, key string) (*domain.Identity, error) {
	if key == "" {
		return nil, domain.ErrStorage(domain.ErrorKindStorageValidation, "api key must not be empty", nil)
	}

	var identity domain.Identity
	err := s.db.GetContext(ctx, &identity,
		`SELECT id, email, name, api_key FROM users WHERE api_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("failed to query user by api key", err)
	}
	return &identity, nil
}

// CreateUser inserts a user record. Used by cmd/keygen and tests; the
// identity provider performs user creation in production.
func (s *Store) CreateUser(ctx context.Context, identity *domain.Identity) error {
	if identity.ID == "" || identity.Email == "" {
		return domain.ErrStorage(domain.ErrorKindStorageValidation, "user id and email must not be empty", nil)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, api_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		identity.ID, identity.Email, identity.Name, identity.APIKey, now, now)
	if err != nil {
		return classify("failed to create user", err)
	}
	return nil
}

// UpdateAPIKey assigns a new API key to the user. The UNIQUE constraint on
// api_key upholds the one-key-one-identity invariant.
func (s *Store) UpdateAPIKey(ctx context.Context, userID, key string) error {
	if userID == "" || key == "" {
		return domain.ErrStorage(domain.ErrorKindStorageValidation, "user id and api key must not be empty", nil)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UTC(), userID)
	if err != nil {
		return classify("failed to update api key", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return classify("failed to update api key", err)
	}
	if affected == 0 {
		return domain.ErrStorage(domain.ErrorKindStorageQuery,
			fmt.Sprintf("no user with id %q", userID), sql.ErrNoRows)
	}
	return nil
}

// CreateSession inserts a session record on behalf of the identity provider.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session, token string) error {
	if session.ID == "" || session.UserID == "" || token == "" {
		return domain.ErrStorage(domain.ErrorKindStorageValidation, "session id, user id and token must not be empty", nil)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, token, session.ExpiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return classify("failed to create session", err)
	}
	return nil
}

// classify maps a raw database error onto the storage error kinds: known
// request failures (constraint violations) versus low-level driver failures.
func classify(message string, err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		// SQLITE_CONSTRAINT and its extended codes.
		if serr.Code()&0xff == 19 {
			return domain.ErrStorage(domain.ErrorKindStorageQuery, message, err)
		}
		return domain.ErrStorage(domain.ErrorKindStorageDriver, message, err)
	}
	return domain.ErrStorage(domain.ErrorKindStorageDriver, message, err)
}
