package notify

import (
	"sync"

	"reportbot/internal/model"
)

// Key identifies one notification of one event occurrence in a channel.
type Key struct {
	ChannelID    int64
	Event        model.EventRef
	Date         model.Date
	Notification model.NotificationKind
}

// Memory records which notifications already fired today. It is process
// local and not persisted: a restart forgets fired keys, which may repeat
// at most one notification per window that was in flight.
//
// Jobs run on separate goroutines and share one Memory, so the map is
// guarded by a mutex. Jobs use disjoint notification kinds; the lock only
// serializes map access.
type Memory struct {
	mu    sync.Mutex
	fired map[Key]struct{}
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{fired: make(map[Key]struct{})}
}

// ShouldFire purges keys from other days, then returns true and records
// key if it has not fired yet.
func (m *Memory) ShouldFire(key Key, today model.Date) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purge(today)
	if _, ok := m.fired[key]; ok {
		return false
	}
	m.fired[key] = struct{}{}
	return true
}

// Forget removes a key so that it may fire again. Used when a delivery
// was definitely not made.
func (m *Memory) Forget(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fired, key)
}

// Len returns the number of recorded keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fired)
}

func (m *Memory) purge(today model.Date) {
	for k := range m.fired {
		if k.Date != today {
			delete(m.fired, k)
		}
	}
}
