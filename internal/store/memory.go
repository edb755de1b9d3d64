package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is a process-local KV used when no external store is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.data[strings.TrimSpace(key)] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	key = strings.TrimSpace(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	var current []byte
	if v, ok := m.data[key]; ok {
		current = append([]byte(nil), v...)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	m.data[key] = append([]byte(nil), next...)
	return nil
}

func (m *Memory) Close() error { return nil }
