package history

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store backed by a map of encoded entries.
// It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Append(_ context.Context, e Entry) (Entry, error) {
	e = prepare(e)
	data, err := encode(e)
	if err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	m.data[string(key(e))] = data
	m.mu.Unlock()
	return e, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int { return strings.Compare(b, a) })
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = m.data[k]
	}
	m.mu.RUnlock()

	out := make([]Entry, 0, len(values))
	for _, v := range values {
		e, err := decode(v)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) Clear(context.Context) (int, error) {
	m.mu.Lock()
	n := len(m.data)
	clear(m.data)
	m.mu.Unlock()
	return n, nil
}

func (m *Memory) Close() error { return nil }
