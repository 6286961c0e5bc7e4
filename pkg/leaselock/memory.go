package leaselock

import (
	"context"
	"sync"
	"time"
)

type memoryLease struct {
	token   string
	expires time.Time
}

type memoryBackend struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	now    func() time.Time
}

// NewMemory keeps leases in process. It only serializes work inside a
// single process.
func NewMemory() *Client {
	return &Client{b: &memoryBackend{leases: make(map[string]memoryLease), now: time.Now}}
}

func (m *memoryBackend) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cur, ok := m.leases[key]
	if ok && cur.token != token && now.Before(cur.expires) {
		return false, nil
	}
	m.leases[key] = memoryLease{token: token, expires: now.Add(ttl)}
	return true, nil
}

func (m *memoryBackend) renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.leases[key]
	if !ok || cur.token != token {
		return false, nil
	}
	m.leases[key] = memoryLease{token: token, expires: m.now().Add(ttl)}
	return true, nil
}

func (m *memoryBackend) release(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.leases[key]; ok && cur.token == token {
		delete(m.leases, key)
	}
	return nil
}

// steal hands key to another owner, as if the lease expired and was taken.
func (m *memoryBackend) steal(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[key] = memoryLease{token: "thief", expires: m.now().Add(time.Hour)}
}
