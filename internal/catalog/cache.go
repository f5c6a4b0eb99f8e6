package catalog

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Cache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, snapshot *Snapshot) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

// MemoryCache is used when no Redis address is configured.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	snapshot  *Snapshot
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Get(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil {
		return nil, ErrCacheMiss
	}
	if m.now().After(m.expiresAt) {
		m.snapshot = nil
		return nil, ErrCacheMiss
	}
	return m.snapshot, nil
}

func (m *MemoryCache) Set(_ context.Context, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = snapshot
	m.expiresAt = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryCache) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = nil
	return nil
}
