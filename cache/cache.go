package cache

import (
	"context"
	"sync"
	"time"

	"github.com/madbus/madbus/model"
)

// Short lived cache of arrival predictions, by stop ID.
type Arrivals interface {
	// Returns cached arrivals and true on a hit.
	Get(ctx context.Context, stopID string) ([]model.Arrival, bool, error)

	Set(ctx context.Context, stopID string, arrivals []model.Arrival, ttl time.Duration) error
}

// In memory implementation of Arrivals.
type Memory struct {
	mutex   sync.Mutex
	entries map[string]memoryEntry

	TimeNow func() time.Time
}

type memoryEntry struct {
	arrivals   []model.Arrival
	expiration time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		TimeNow: time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, stopID string) ([]model.Arrival, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, ok := m.entries[stopID]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiration.After(m.TimeNow()) {
		delete(m.entries, stopID)
		return nil, false, nil
	}
	return append([]model.Arrival{}, entry.arrivals...), true, nil
}

func (m *Memory) Set(ctx context.Context, stopID string, arrivals []model.Arrival, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries[stopID] = memoryEntry{
		arrivals:   append([]model.Arrival{}, arrivals...),
		expiration: m.TimeNow().Add(ttl),
	}
	return nil
}
