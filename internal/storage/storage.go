// Package storage persists the step history and the daily goal in a durable
// key-value slot.
//
// Reads never fail the caller: a missing or unparsable value yields an empty
// history or the default goal. Writes are synchronous; a failed write is
// reported as ErrPersist while the returned in-memory value stays
// authoritative, and the next successful write re-asserts the full state.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPersist marks a durable write that failed. The value handed back
	// alongside it is still the one in effect for this session.
	ErrPersist = errors.New("persist failed")

	// ErrInvalidGoal rejects goals that are not positive integers.
	ErrInvalidGoal = errors.New("goal must be a positive number")

	// ErrInvalidEntry rejects history entries with a malformed day key or a
	// negative step count.
	ErrInvalidEntry = errors.New("invalid history entry")
)

// Slot is a durable string key-value store.
type Slot interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Options names the slot keys and the default goal.
type Options struct {
	HistoryKey  string
	GoalKey     string
	DefaultGoal int
}

const (
	DefaultHistoryKey = "step_history"
	DefaultGoalKey    = "daily_goal"
	DefaultGoal       = 10000
)

// DefaultOptions returns the keys used by the mobile app's storage layout.
func DefaultOptions() Options {
	return Options{
		HistoryKey:  DefaultHistoryKey,
		GoalKey:     DefaultGoalKey,
		DefaultGoal: DefaultGoal,
	}
}

func (o Options) withDefaults() Options {
	if o.HistoryKey == "" {
		o.HistoryKey = DefaultHistoryKey
	}
	if o.GoalKey == "" {
		o.GoalKey = DefaultGoalKey
	}
	if o.DefaultGoal <= 0 {
		o.DefaultGoal = DefaultGoal
	}
	return o
}

// MemorySlot is an in-process Slot.
type MemorySlot struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[string]string)}
}

func (m *MemorySlot) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySlot) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemorySlot) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
