package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"step-tracker/internal/daykey"

	"go.uber.org/zap"
)

// Entry is one day's step total.
type Entry struct {
	Date  daykey.Key `json:"date"`
	Steps int        `json:"steps"`
}

// History maps day keys to step totals. The zero value is an empty history.
// A History is never mutated after it is handed out; Upsert returns a copy.
type History struct {
	steps map[daykey.Key]int
}

// NewHistory builds a History from entries; later duplicates win.
func NewHistory(entries ...Entry) History {
	h := History{steps: make(map[daykey.Key]int, len(entries))}
	for _, e := range entries {
		h.steps[e.Date] = e.Steps
	}
	return h
}

// Steps returns the total stored for key.
func (h History) Steps(key daykey.Key) (int, bool) {
	n, ok := h.steps[key]
	return n, ok
}

func (h History) Len() int { return len(h.steps) }

// Entries returns all entries, most recent day first.
func (h History) Entries() []Entry {
	out := make([]Entry, 0, len(h.steps))
	for k, n := range h.steps {
		out = append(out, Entry{Date: k, Steps: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (h History) with(key daykey.Key, steps int) History {
	next := History{steps: make(map[daykey.Key]int, len(h.steps)+1)}
	for k, n := range h.steps {
		next.steps[k] = n
	}
	next.steps[key] = steps
	return next
}

// HistoryStore reads and writes the History under a single slot key.
type HistoryStore struct {
	slot   Slot
	key    string
	logger *zap.Logger

	// mu keeps slot writes in call order.
	mu sync.Mutex
}

func NewHistoryStore(slot Slot, opts Options, logger *zap.Logger) *HistoryStore {
	return &HistoryStore{
		slot:   slot,
		key:    opts.withDefaults().HistoryKey,
		logger: logger,
	}
}

// Load reads the persisted history. Missing, unreadable or corrupt data
// yields an empty History.
func (s *HistoryStore) Load(ctx context.Context) History {
	raw, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to read step history", zap.String("key", s.key), zap.Error(err))
		return NewHistory()
	}
	if !ok || raw == "" {
		return NewHistory()
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("discarding unparsable step history", zap.String("key", s.key), zap.Error(err))
		return NewHistory()
	}

	valid := entries[:0]
	for _, e := range entries {
		if !daykey.Valid(string(e.Date)) || e.Steps < 0 {
			s.logger.Warn("skipping invalid history entry",
				zap.String("date", string(e.Date)), zap.Int("steps", e.Steps))
			continue
		}
		valid = append(valid, e)
	}
	return NewHistory(valid...)
}

// Upsert returns h with key's total set to steps and writes the result
// through to the slot before returning. If the write fails the returned
// History is still valid and the error wraps ErrPersist.
func (s *HistoryStore) Upsert(ctx context.Context, h History, key daykey.Key, steps int) (History, error) {
	if !daykey.Valid(string(key)) || steps < 0 {
		return h, fmt.Errorf("%w: %s=%d", ErrInvalidEntry, key, steps)
	}

	next := h.with(key, steps)
	if err := s.write(ctx, next); err != nil {
		s.logger.Warn("failed to persist step history",
			zap.String("date", string(key)), zap.Int("steps", steps), zap.Error(err))
		return next, err
	}
	return next, nil
}

// List returns h's entries, most recent day first.
func (s *HistoryStore) List(h History) []Entry {
	return h.Entries()
}

func (s *HistoryStore) write(ctx context.Context, h History) error {
	entries := h.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encode history: %v", ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slot.Set(ctx, s.key, string(payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
