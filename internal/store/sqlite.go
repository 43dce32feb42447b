package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const createPreferencesTable = `CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	text_value TEXT,
	real_value REAL,
	blob_value BLOB
)`

const upsertPreference = `INSERT OR REPLACE INTO preferences (key, kind, text_value, real_value, blob_value)
	VALUES (?, ?, ?, ?, ?)`

const (
	kindString = "string"
	kindFloat  = "float"
	kindBlob   = "blob"
)

type preferenceRow struct {
	Kind string          `db:"kind"`
	Text sql.NullString  `db:"text_value"`
	Real sql.NullFloat64 `db:"real_value"`
	Blob []byte          `db:"blob_value"`
}

type sqliteStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// OpenSQLite opens the preferences database at path, creating the table if needed.
func OpenSQLite(path string, log zerolog.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create preferences directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open preferences database: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createPreferencesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create preferences table: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened preferences database")
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) row(key, kind string) (preferenceRow, error) {
	var r preferenceRow
	err := s.db.Get(&r, `SELECT kind, text_value, real_value, blob_value FROM preferences WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("read %q: %w", key, err)
	}
	if r.Kind != kind {
		return r, fmt.Errorf("key %q: want %s, have %s", key, kind, r.Kind)
	}
	return r, nil
}

func (s *sqliteStore) String(key string) (string, error) {
	r, err := s.row(key, kindString)
	if err != nil {
		return "", err
	}
	return r.Text.String, nil
}

func (s *sqliteStore) Float(key string) (float64, error) {
	r, err := s.row(key, kindFloat)
	if err != nil {
		return 0, err
	}
	return r.Real.Float64, nil
}

func (s *sqliteStore) Blob(key string) ([]byte, error) {
	r, err := s.row(key, kindBlob)
	if err != nil {
		return nil, err
	}
	return r.Blob, nil
}

func (s *sqliteStore) Write(b *Batch) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	exec := func(key, kind string, text, num, blob any) error {
		if _, err := tx.Exec(upsertPreference, key, kind, text, num, blob); err != nil {
			return fmt.Errorf("write %q: %w", key, err)
		}
		return nil
	}

	for k, v := range b.strings {
		if err := exec(k, kindString, v, nil, nil); err != nil {
			tx.Rollback()
			return err
		}
	}
	for k, v := range b.floats {
		if err := exec(k, kindFloat, nil, v, nil); err != nil {
			tx.Rollback()
			return err
		}
	}
	for k, v := range b.blobs {
		if err := exec(k, kindBlob, nil, nil, v); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
