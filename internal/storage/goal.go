package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GoalStore reads and writes the daily step goal.
type GoalStore struct {
	slot        Slot
	key         string
	defaultGoal int
	logger      *zap.Logger
}

func NewGoalStore(slot Slot, opts Options, logger *zap.Logger) *GoalStore {
	opts = opts.withDefaults()
	return &GoalStore{
		slot:        slot,
		key:         opts.GoalKey,
		defaultGoal: opts.DefaultGoal,
		logger:      logger,
	}
}

// Default returns the goal used when nothing valid is persisted.
func (s *GoalStore) Default() int { return s.defaultGoal }

// Load returns the persisted goal, or the default when it is absent,
// unreadable or not a positive integer.
func (s *GoalStore) Load(ctx context.Context) int {
	raw, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("failed to read daily goal", zap.String("key", s.key), zap.Error(err))
		return s.defaultGoal
	}
	if !ok {
		return s.defaultGoal
	}

	goal, err := ParseGoal(raw)
	if err != nil {
		s.logger.Warn("ignoring stored daily goal", zap.String("value", raw), zap.Error(err))
		return s.defaultGoal
	}
	return goal
}

// Save persists goal. Non-positive goals are rejected with ErrInvalidGoal
// and nothing is written; a failed write wraps ErrPersist.
func (s *GoalStore) Save(ctx context.Context, goal int) error {
	if goal <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidGoal, goal)
	}
	if err := s.slot.Set(ctx, s.key, strconv.Itoa(goal)); err != nil {
		s.logger.Warn("failed to persist daily goal", zap.Int("goal", goal), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Reset removes the persisted goal so Load falls back to the default, which
// it returns. A failed delete wraps ErrPersist; the default still applies
// for this session.
func (s *GoalStore) Reset(ctx context.Context) (int, error) {
	if err := s.slot.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to reset daily goal", zap.Error(err))
		return s.Default(), fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return s.Default(), nil
}

// ParseGoal parses user input as a positive base-10 integer.
func ParseGoal(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGoal, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidGoal, n)
	}
	return n, nil
}
