package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jrsteele09/bookstore-session/token"
)

//go:embed schema.sql
var schemaSQL string

var _ token.Store = (*Store)(nil)

// Store persists the token pair in a SQLite key/value table, one row per
// storage key. Writes replace both rows in a single transaction.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, creating parent directories
// readable only by the current user.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create token store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to token store: %w", err)
	}

	// Single writer avoids SQLITE_BUSY and keeps :memory: databases shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply token store schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Get(ctx context.Context) (token.Pair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key IN (?, ?)`,
		token.AccessTokenKey, token.RefreshTokenKey)
	if err != nil {
		return token.Pair{}, fmt.Errorf("failed to read tokens: %w", err)
	}
	defer rows.Close()

	var pair token.Pair
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return token.Pair{}, fmt.Errorf("failed to scan token row: %w", err)
		}
		switch key {
		case token.AccessTokenKey:
			pair.AccessToken = value
		case token.RefreshTokenKey:
			pair.RefreshToken = value
		}
	}
	if err := rows.Err(); err != nil {
		return token.Pair{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	if !pair.Valid() {
		return token.Pair{}, token.ErrNoTokens
	}
	return pair, nil
}

func (s *Store) Set(ctx context.Context, pair token.Pair) error {
	if !pair.Valid() {
		return token.ErrInvalidPair
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		for key, value := range map[string]string{
			token.AccessTokenKey:  pair.AccessToken,
			token.RefreshTokenKey: pair.RefreshToken,
		} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, value, now); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM kv WHERE key IN (?, ?)`,
			token.AccessTokenKey, token.RefreshTokenKey); err != nil {
			return fmt.Errorf("failed to clear tokens: %w", err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
