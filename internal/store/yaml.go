package store

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// yamlStore keeps preferences in a YAML file through its own viper instance.
// Blobs are base64 encoded. Viper folds keys to lower case.
type yamlStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
	log  zerolog.Logger
}

// OpenYAML opens (or prepares to create) the preferences file at path.
// An unreadable file is logged and treated as empty.
func OpenYAML(path string, log zerolog.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create preferences directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Preferences file unreadable, starting from defaults")
		}
	}

	log.Debug().Str("path", path).Msg("Opened preferences file")
	return &yamlStore{v: v, path: path, log: log}, nil
}

func (s *yamlStore) get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.v.IsSet(key) {
		return nil, ErrNotFound
	}
	return s.v.Get(key), nil
}

func (s *yamlStore) String(key string) (string, error) {
	v, err := s.get(key)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return str, nil
}

func (s *yamlStore) Float(key string) (float64, error) {
	v, err := s.get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, typeError(key, "float", v)
	}
}

func (s *yamlStore) Blob(key string) ([]byte, error) {
	str, err := s.String(key)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	return b, nil
}

func (s *yamlStore) Write(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range b.strings {
		s.v.Set(k, v)
	}
	for k, v := range b.floats {
		s.v.Set(k, v)
	}
	for k, v := range b.blobs {
		s.v.Set(k, base64.StdEncoding.EncodeToString(v))
	}

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

func (s *yamlStore) Close() error { return nil }
