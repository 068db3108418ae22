// Package tracker attributes a live stream of pedometer increments to local
// calendar days and keeps the persisted per-day history in step with it.
//
// An Aggregator moves through three states:
//
//	Uninitialized -> Tracking     sensor available, subscribed
//	Uninitialized -> Unavailable  sensor missing or denied; today's total frozen
//	Unavailable   -> Tracking     Retry finds the sensor available again
//
// Every transition is serialized by one mutex. Each commit writes the day's
// total through the history store and then notifies listeners in commit order.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"step-tracker/internal/daykey"
	"step-tracker/internal/storage"

	"go.uber.org/zap"
)

type State int

const (
	Uninitialized State = iota
	Tracking
	Unavailable
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Unavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var ErrAlreadyStarted = errors.New("aggregator already started")

// Update is the state handed to listeners after every commit.
type Update struct {
	Day   daykey.Key `json:"date"`
	Steps int        `json:"steps"`
	Goal  int        `json:"goal"`
	State State      `json:"state"`
	// GoalReached is set on the one commit that lifted the day's total to the goal.
	GoalReached bool `json:"goalReached"`
}

type Listener func(Update)

type Options struct {
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Aggregator struct {
	resolver *daykey.Resolver
	history  *storage.HistoryStore
	goals    *storage.GoalStore
	sensor   Sensor
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	state       State
	stopped     bool
	day         daykey.Key
	steps       int
	goal        int
	goalReached bool
	hist        storage.History
	sub         Subscription

	// Deliveries take a ticket under mu and run in ticket order after mu is
	// released, so listeners see commits in order and may read state.
	issued     uint64
	served     uint64
	turnMu     sync.Mutex
	turn       *sync.Cond
	listenerMu sync.RWMutex
	listeners  map[int]Listener
	nextID     int
}

func New(resolver *daykey.Resolver, history *storage.HistoryStore, goals *storage.GoalStore, sensor Sensor, opts Options) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &Aggregator{
		resolver:  resolver,
		history:   history,
		goals:     goals,
		sensor:    sensor,
		logger:    opts.Logger,
		now:       opts.Now,
		ctx:       context.Background(),
		listeners: make(map[int]Listener),
	}
	a.turn = sync.NewCond(&a.turnMu)
	return a
}

// OnUpdate registers l for every committed change. The returned func removes it.
// Listeners run on the committing goroutine. They may read state but must not
// call Record, CheckRollover, Retry or SetGoal.
func (a *Aggregator) OnUpdate(l Listener) func() {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = l
	return func() {
		a.listenerMu.Lock()
		delete(a.listeners, id)
		a.listenerMu.Unlock()
	}
}

// Start loads history and goal, seeds today's bucket from the sensor and
// subscribes to live increments. A missing sensor is not an error: the
// aggregator enters Unavailable with today's last saved total.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != Uninitialized || a.stopped {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.ctx = context.WithoutCancel(ctx)

	a.hist = a.history.Load(ctx)
	a.goal = a.goals.Load(ctx)

	now := a.now()
	a.day = a.resolver.Resolve(now)
	a.steps, _ = a.hist.Steps(a.day)
	a.goalReached = a.steps >= a.goal

	a.logger.Info("step aggregator starting",
		zap.String("date", a.day.String()),
		zap.Int("saved_steps", a.steps),
		zap.Int("goal", a.goal),
		zap.Int("history_days", a.hist.Len()))

	if !a.sensor.IsAvailable(ctx) {
		a.state = Unavailable
		a.logger.Warn("step sensor unavailable, live tracking disabled")
		a.release([]Update{a.snapshot(false)})
		return nil
	}

	a.release(a.attach(ctx, now))
	return nil
}

// attach queries today's cumulative count, commits it and subscribes.
// Called with mu held.
func (a *Aggregator) attach(ctx context.Context, now time.Time) []Update {
	count, err := a.sensor.QueryCumulative(ctx, a.resolver.StartOfDay(now), now)
	if err != nil {
		a.sensorFailed("initial step query failed, keeping saved total", err, zap.Int("steps", a.steps))
	} else {
		a.steps = count
	}
	u := a.commit(ctx)

	sub, err := a.sensor.Subscribe(a.onIncrement)
	if err != nil {
		a.state = Unavailable
		a.sensorFailed("step sensor subscription failed", err)
		u.State = a.state
		return []Update{u}
	}
	a.sub = sub
	a.state = Tracking
	u.State = a.state
	a.logger.Info("tracking steps", zap.String("date", a.day.String()), zap.Int("steps", a.steps))
	return []Update{u}
}

func (a *Aggregator) onIncrement(delta int) {
	a.Record(delta)
}

// Record applies a pushed increment. An increment arriving after the day
// changed without a rollover finalizes the old day and belongs entirely to
// the new one.
func (a *Aggregator) Record(delta int) {
	a.mu.Lock()
	if delta <= 0 || a.state != Tracking || a.stopped {
		a.mu.Unlock()
		return
	}

	ctx := a.ctx
	key := a.resolver.Resolve(a.now())
	if key != a.day {
		a.logger.Info("day changed before rollover check, splitting at increment",
			zap.String("from", a.day.String()), zap.String("to", key.String()),
			zap.Int("final_steps", a.steps), zap.Int("delta", delta))
		a.commit(ctx)
		a.day = key
		a.steps = 0
		a.goalReached = false
	}

	a.steps += delta
	u := a.commit(ctx)
	a.logger.Debug("steps recorded",
		zap.String("date", a.day.String()), zap.Int("delta", delta), zap.Int("steps", a.steps))
	a.release([]Update{u})
}

// CheckRollover finalizes the current bucket and starts a new one when the
// local day has changed. It reports whether a rollover happened; repeated
// calls within the same day are no-ops.
func (a *Aggregator) CheckRollover(ctx context.Context) bool {
	a.mu.Lock()
	if a.state == Uninitialized || a.stopped {
		a.mu.Unlock()
		return false
	}

	now := a.now()
	today := a.resolver.Resolve(now)
	if today == a.day {
		a.mu.Unlock()
		return false
	}

	a.rollover(ctx, now, today)
	a.release([]Update{a.commit(ctx)})
	return true
}

// rollover finalizes the current day and seeds today from the sensor,
// falling back to zero. Called with mu held; the caller commits.
func (a *Aggregator) rollover(ctx context.Context, now time.Time, today daykey.Key) {
	prev, final := a.day, a.steps
	a.commit(ctx)

	seed, err := a.sensor.QueryCumulative(ctx, a.resolver.StartOfDay(now), now)
	if err != nil {
		a.sensorFailed("step query for new day failed, starting from zero", err, zap.String("date", today.String()))
		seed = 0
	}

	a.day = today
	a.steps = seed
	a.goalReached = false
	a.logger.Info("day rolled over",
		zap.String("finalized", prev.String()), zap.Int("final_steps", final),
		zap.String("date", today.String()), zap.Int("seed", seed))
}

// Retry re-attaches to the sensor after it was unavailable. It reports
// whether the aggregator is now tracking.
func (a *Aggregator) Retry(ctx context.Context) bool {
	a.mu.Lock()
	if a.state != Unavailable || a.stopped {
		tracking := a.state == Tracking
		a.mu.Unlock()
		return tracking
	}
	if !a.sensor.IsAvailable(ctx) {
		a.mu.Unlock()
		return false
	}

	now := a.now()
	if today := a.resolver.Resolve(now); today != a.day {
		a.commit(ctx)
		a.day = today
		a.steps, _ = a.hist.Steps(today)
		a.goalReached = a.steps >= a.goal
	}

	a.logger.Info("step sensor available again")
	updates := a.attach(ctx, now)
	tracking := a.state == Tracking
	a.release(updates)
	return tracking
}

// Stop cancels the sensor subscription. Later increments and checks are ignored.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	sub := a.sub
	a.sub = nil
	a.stopped = true
	a.mu.Unlock()

	// Cancel outside mu: the sensor may be blocked delivering into Record.
	if sub != nil {
		sub.Cancel()
	}
}

// Goal returns the daily goal in effect.
func (a *Aggregator) Goal() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Uninitialized {
		return a.goals.Load(a.ctx)
	}
	return a.goal
}

// SetGoal validates and persists goal. storage.ErrInvalidGoal leaves the
// previous goal in place; storage.ErrPersist means the new goal is in effect
// but not saved.
func (a *Aggregator) SetGoal(ctx context.Context, goal int) error {
	a.mu.Lock()
	err := a.goals.Save(ctx, goal)
	if errors.Is(err, storage.ErrInvalidGoal) {
		a.mu.Unlock()
		return err
	}
	a.applyGoal(goal)
	return err
}

// ResetGoal drops the saved goal and returns the default, which is in effect
// even when the reset could not be persisted.
func (a *Aggregator) ResetGoal(ctx context.Context) (int, error) {
	a.mu.Lock()
	goal, err := a.goals.Reset(ctx)
	a.applyGoal(goal)
	return goal, err
}

// applyGoal is called with mu held and releases it.
func (a *Aggregator) applyGoal(goal int) {
	a.goal = goal
	// Raising the goal above today's total re-arms the goal-reached notice.
	a.goalReached = a.steps >= goal
	if a.state == Uninitialized {
		a.mu.Unlock()
		return
	}
	a.release([]Update{a.snapshot(false)})
}

// History returns the persisted history, most recent day first.
func (a *Aggregator) History() []storage.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Uninitialized {
		return a.history.Load(a.ctx).Entries()
	}
	return a.history.List(a.hist)
}

// Current returns the live state without committing anything.
func (a *Aggregator) Current() Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot(false)
}

// commit writes the current bucket through to history. Called with mu held.
func (a *Aggregator) commit(ctx context.Context) Update {
	hist, err := a.history.Upsert(ctx, a.hist, a.day, a.steps)
	if err != nil && !errors.Is(err, storage.ErrPersist) {
		a.logger.Error("rejected history commit",
			zap.String("date", a.day.String()), zap.Int("steps", a.steps), zap.Error(err))
	}
	a.hist = hist

	reached := !a.goalReached && a.steps >= a.goal
	if reached {
		a.goalReached = true
		a.logger.Info("daily goal reached",
			zap.String("date", a.day.String()), zap.Int("steps", a.steps), zap.Int("goal", a.goal))
	}
	return a.snapshot(reached)
}

// sensorFailed logs expected sensor outages at warn level and anything else,
// such as a driver bug, at error level.
func (a *Aggregator) sensorFailed(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if IsSensorError(err) {
		a.logger.Warn(msg, fields...)
		return
	}
	a.logger.Error(msg, fields...)
}

func (a *Aggregator) snapshot(reached bool) Update {
	return Update{
		Day:         a.day,
		Steps:       a.steps,
		Goal:        a.goal,
		State:       a.state,
		GoalReached: reached,
	}
}

// release unlocks mu and delivers updates after every earlier release has
// delivered its own. Called with mu held.
func (a *Aggregator) release(updates []Update) {
	ticket := a.issued
	a.issued++
	a.mu.Unlock()

	a.turnMu.Lock()
	for a.served != ticket {
		a.turn.Wait()
	}
	a.turnMu.Unlock()
	defer func() {
		a.turnMu.Lock()
		a.served++
		a.turn.Broadcast()
		a.turnMu.Unlock()
	}()

	a.listenerMu.RLock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.listenerMu.RUnlock()

	for _, u := range updates {
		for _, l := range listeners {
			l(u)
		}
	}
}
