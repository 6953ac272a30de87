package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Storage persists attachment bytes and returns a publicly reachable URL.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Memory is an in-process Storage used in tests and local development.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_ = contentType
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return fmt.Sprintf("mem://attachments/%s", key), nil
}

func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
