// Package store is the key/value persistence port used for user preferences,
// with memory, YAML-file and SQLite backends.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Store reads typed values by key and applies writes in batches.
// A read of a key holding a value of another type fails with an error
// other than ErrNotFound.
type Store interface {
	String(key string) (string, error)
	Float(key string) (float64, error)
	Blob(key string) ([]byte, error)
	Write(b *Batch) error
	Close() error
}

// Batch collects values to be written together.
type Batch struct {
	strings map[string]string
	floats  map[string]float64
	blobs   map[string][]byte
}

func NewBatch() *Batch {
	return &Batch{
		strings: map[string]string{},
		floats:  map[string]float64{},
		blobs:   map[string][]byte{},
	}
}

func (b *Batch) SetString(key, v string)        { b.strings[key] = v }
func (b *Batch) SetFloat(key string, v float64) { b.floats[key] = v }

func (b *Batch) SetBlob(key string, v []byte) {
	b.blobs[key] = append([]byte(nil), v...)
}

// Len is the number of keys in the batch.
func (b *Batch) Len() int {
	return len(b.strings) + len(b.floats) + len(b.blobs)
}

// Keys returns the batch's keys, for logging.
func (b *Batch) Keys() []string {
	keys := make([]string, 0, b.Len())
	for k := range b.strings {
		keys = append(keys, k)
	}
	for k := range b.floats {
		keys = append(keys, k)
	}
	for k := range b.blobs {
		keys = append(keys, k)
	}
	return keys
}

// Open returns the backend named by kind ("memory", "yaml" or "sqlite").
// An empty path selects the platform default under the data directory.
func Open(kind, path, dataDir string, log zerolog.Logger) (Store, error) {
	log = log.With().Str("component", "store").Str("backend", kind).Logger()

	switch strings.ToLower(kind) {
	case "memory":
		return NewMemory(), nil
	case "", "yaml":
		if path == "" {
			path = filepath.Join(dataDir, "preferences.yaml")
		}
		return OpenYAML(path, log)
	case "sqlite":
		if path == "" {
			path = filepath.Join(dataDir, "preferences.db")
		}
		return OpenSQLite(path, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

func typeError(key, want string, got any) error {
	return fmt.Errorf("key %q: want %s, have %T", key, want, got)
}
