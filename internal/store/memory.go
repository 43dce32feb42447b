package store

import "sync"

// Memory is an in-process Store, used in preview mode and in tests.
type Memory struct {
	mu     sync.Mutex
	values map[string]any
	writes int
}

func NewMemory() *Memory {
	return &Memory{values: map[string]any{}}
}

func (m *Memory) get(key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *Memory) String(key string) (string, error) {
	v, err := m.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "string", v)
	}
	return s, nil
}

func (m *Memory) Float(key string) (float64, error) {
	v, err := m.get(key)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, typeError(key, "float", v)
	}
	return f, nil
}

func (m *Memory) Blob(key string) ([]byte, error) {
	v, err := m.get(key)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, typeError(key, "blob", v)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Write(b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range b.strings {
		m.values[k] = v
	}
	for k, v := range b.floats {
		m.values[k] = v
	}
	for k, v := range b.blobs {
		m.values[k] = append([]byte(nil), v...)
	}
	m.writes++
	return nil
}

// Set stores a raw value, bypassing typing. Tests use it to plant corrupt data.
func (m *Memory) Set(key string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = v
}

// Writes reports how many batches have been written.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) Close() error { return nil }
