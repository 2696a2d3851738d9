package handoff

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

// KV is the minimal expiring key/value contract the handoff store needs.
// GetDel must be atomic: when several callers race on the same key, exactly
// one observes the value and the rest observe a miss.
type KV interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, bool, error)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is a thread-safe in-process KV. Entries are checked for expiry
// on read and swept periodically; they are lost on restart, which is
// acceptable for a store whose entries live for minutes.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]memoryEntry
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ KV = (*MemoryKV)(nil)

func NewMemoryKV() *MemoryKV {
	m := &MemoryKV{
		data:   make(map[string]memoryEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background sweep goroutine.
func (m *MemoryKV) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *MemoryKV) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryKV) GetDel(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	delete(m.data, key)
	if m.now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// sweepLoop periodically drops entries that expired without being fetched.
func (m *MemoryKV) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *MemoryKV) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, entry := range m.data {
		if now.After(entry.expiresAt) {
			delete(m.data, key)
		}
	}
}
