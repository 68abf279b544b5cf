package cache

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds the in-memory cache size.
	DefaultMaxEntries = 10000

	// cleanupInterval is how often expired entries are evicted.
	cleanupInterval = 5 * time.Minute
)

// entry holds a cached value with its expiry.
type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process TTL cache. Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	store      map[string]entry
	maxEntries int
	stopCh     chan struct{}
	stopOnce   sync.Once

	// Injectable for tests.
	now func() time.Time
}

// Ensure Memory implements Cache.
var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache holding at most maxEntries values.
// A background goroutine evicts expired entries until Close is called.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	m := &Memory{
		store:      make(map[string]entry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	go m.cleanupLoop()
	return m
}

// Get returns the value for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()

	if !ok || m.now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores value under key for ttl. At capacity an arbitrary entry is
// evicted to make room (map iteration order is random).
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && len(m.store) >= m.maxEntries {
		for k := range m.store {
			delete(m.store, k)
			break
		}
	}

	m.store[key] = entry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.store, key)
	m.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// cleanupLoop evicts expired entries periodically until Close.
func (m *Memory) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for k, e := range m.store {
				if now.After(e.expiresAt) {
					delete(m.store, k)
				}
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}
