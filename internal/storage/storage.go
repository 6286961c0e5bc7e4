// Package storage keeps document bodies in object storage. Review items and
// graph data never go through here.
package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/aletheia-codex/backend/pkg/common"
)

// DocumentStorage stores the raw text of submitted documents.
type DocumentStorage interface {
	PutDocument(ctx context.Context, key string, body []byte) error
	GetDocument(ctx context.Context, key string) ([]byte, error)
	DeleteDocument(ctx context.Context, key string) error
}

// DocumentKey is the object key of a document body.
func DocumentKey(userID, documentID string) string {
	return fmt.Sprintf("documents/%s/%s.txt", userID, documentID)
}

// Memory is a DocumentStorage for tests and the in-memory backend.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) PutDocument(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = slices.Clone(body)
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, common.NotFoundf("document body %s", key)
	}
	return slices.Clone(body), nil
}

func (m *Memory) DeleteDocument(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists stored keys under prefix in sorted order.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := slices.Sorted(maps.Keys(m.objects))
	return slices.DeleteFunc(keys, func(k string) bool { return !strings.HasPrefix(k, prefix) })
}
