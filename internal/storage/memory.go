package storage

import (
	"context"
	"strings"
	"sync"
)

// Memory implements Storage over an in-memory map. Useful for tests and for
// exercising the ledger/scheduler without a real filesystem or bucket.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory Storage.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) ReadToString(ctx context.Context, path string) (string, error) {
	data, err := m.Read(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Memory) ReadRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	data, err := m.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	start, end = clampRange(int64(len(data)), start, end)
	return data[start:end], nil
}

func (m *Memory) Write(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[path] = cp
	return nil
}

func (m *Memory) Len(ctx context.Context, path string) (int64, error) {
	data, err := m.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (m *Memory) ListDir(_ context.Context, path string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.TrimSuffix(path, "/")
	if prefix != "" {
		prefix += "/"
	}
	seen := map[string]bool{}
	var entries []Entry
	for key, data := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name := rest[:idx]
			if !seen[name] {
				seen[name] = true
				entries = append(entries, Entry{Name: name, IsDir: true})
			}
			continue
		}
		entries = append(entries, Entry{Name: rest, Size: int64(len(data))})
	}
	return entries, nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *Memory) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := path + "/"
	for key := range m.objects {
		if key == path || strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}
