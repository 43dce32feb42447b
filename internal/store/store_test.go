package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func backends(t *testing.T) map[string]func() Store {
	dir := t.TempDir()
	return map[string]func() Store{
		"memory": func() Store { return NewMemory() },
		"yaml": func() Store {
			s, err := OpenYAML(filepath.Join(dir, "prefs.yaml"), zerolog.Nop())
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(dir, "prefs.db"), zerolog.Nop())
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			if _, err := s.String("band"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("String on empty store: %v", err)
			}

			b := NewBatch()
			b.SetString("band", "fm")
			b.SetFloat("fmFrequency", 99900000)
			b.SetBlob("favorites", []byte{0x91, 0x01, 0x00})
			if err := s.Write(b); err != nil {
				t.Fatalf("Write: %v", err)
			}

			if got, err := s.String("band"); err != nil || got != "fm" {
				t.Errorf("String = %q, %v", got, err)
			}
			if got, err := s.Float("fmFrequency"); err != nil || got != 99900000 {
				t.Errorf("Float = %v, %v", got, err)
			}
			if got, err := s.Blob("favorites"); err != nil || !bytes.Equal(got, []byte{0x91, 0x01, 0x00}) {
				t.Errorf("Blob = %v, %v", got, err)
			}
		})
	}
}

func TestStoreOverwrite(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			for _, v := range []float64{0.25, 0.75} {
				b := NewBatch()
				b.SetFloat("volume", v)
				if err := s.Write(b); err != nil {
					t.Fatal(err)
				}
			}
			if got, err := s.Float("volume"); err != nil || got != 0.75 {
				t.Errorf("Float = %v, %v", got, err)
			}
		})
	}
}

func TestStoreTypeMismatch(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			b := NewBatch()
			b.SetFloat("band", 3)
			if err := s.Write(b); err != nil {
				t.Fatal(err)
			}
			_, err := s.String("band")
			if err == nil || errors.Is(err, ErrNotFound) {
				t.Errorf("expected type error, got %v", err)
			}
		})
	}
}

func TestYAMLPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := OpenYAML(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	b := NewBatch()
	b.SetFloat("amFrequency", 1050000)
	if err := s.Write(b); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenYAML(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := reopened.Float("amFrequency"); err != nil || got != 1050000 {
		t.Errorf("Float after reopen = %v, %v", got, err)
	}
}

func TestYAMLCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("band: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenYAML(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenYAML: %v", err)
	}
	if _, err := s.String("band"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from corrupt file, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("etcd", "", t.TempDir(), zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
