package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/marcolabs/marco-go-sdk/core"
)

// SQLiteStore persists profiles to a SQLite database, one JSON row per
// scope. Updates run inside an immediate transaction so the
// read-modify-write cycle is atomic across processes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures
// the profiles table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}

	// Writers queue behind each other instead of failing fast.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS profiles (
		scope_key TEXT PRIMARY KEY,
		data      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create profiles table: %w", err)
	}

	log.Printf("[PROFILE] SQLite store ready at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Get loads the profile for scope, returning an empty profile when no
// row exists.
func (s *SQLiteStore) Get(ctx context.Context, scope core.Scope) (*Profile, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE scope_key = ?`, scope.Key(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// Update applies fn to the stored profile inside a transaction.
func (s *SQLiteStore) Update(ctx context.Context, scope core.Scope, fn func(p *Profile) bool) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin profile update: %w", err)
	}
	defer tx.Rollback()

	p := &Profile{}
	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE scope_key = ?`, scope.Key(),
	).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First write for this scope.
	case err != nil:
		return fmt.Errorf("failed to load profile: %w", err)
	default:
		if err := json.Unmarshal([]byte(data), p); err != nil {
			return fmt.Errorf("failed to decode profile: %w", err)
		}
	}

	if !fn(p) {
		return nil
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO profiles (scope_key, data, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(scope_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		scope.Key(), string(encoded))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
