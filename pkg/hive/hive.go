package hive

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"tickmux/internal/gcd"
	logx "tickmux/pkg/logx"
)

// Hive owns the group registry, the timer and the consumer goroutine.
type Hive struct {
	mu       sync.Mutex
	registry map[*Group]*entry
	size     atomic.Int64 // len(registry), readable without mu

	clock clockwork.Clock
	timer Timer
	log   logx.Logger
	fatal func(error)

	lostLimit rate.Limit

	// current holds the running activation, or the last one after Stop.
	current atomic.Pointer[activation]
}

// entry is the per-group bookkeeping. counter is only touched by the consumer.
type entry struct {
	group       *Group
	counter     uint64
	counterInit uint64
	fired       atomic.Uint64
}

// activation is one Inactive->Active->Inactive cycle.
type activation struct {
	tick      time.Duration
	startedAt time.Time
	entries   []*entry
	log       logx.Logger
	lostLog   *rate.Limiter

	cancel context.CancelFunc
	done   chan struct{}

	stopped   atomic.Bool
	ticks     atomic.Uint64
	lostTicks atomic.Uint64
}

var (
	processOnce sync.Once
	process     *Hive
)

// Get returns the process-wide hive, creating it on first use.
func Get() *Hive {
	processOnce.Do(func() {
		process = New()
	})
	return process
}

// New creates an inactive hive.
func New(opts ...Option) *Hive {
	h := &Hive{
		registry:  map[*Group]*entry{},
		lostLimit: rate.Every(10 * time.Second),
	}
	for _, o := range opts {
		o(h)
	}
	if h.clock == nil {
		h.clock = clockwork.NewRealClock()
	}
	if h.timer == nil {
		h.timer = NewClockTimer(h.clock)
	}
	if h.log.IsZero() {
		h.log = logx.Nop()
	}
	return h
}

// SetLogger swaps the logger. It applies from the next Start on.
func (h *Hive) SetLogger(log logx.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if log.IsZero() {
		log = logx.Nop()
	}
	h.log = log
}

// SetLostTickLogEvery limits "ticks lost" warnings to one per d. It applies
// from the next Start on.
func (h *Hive) SetLostTickLogEvery(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.lostLimit = rate.Every(d)
	h.mu.Unlock()
}

// Running reports whether the hive is active.
func (h *Hive) Running() bool { return h.timer.Running() }

// Len returns the number of registered groups. It does not take the hive
// lock and may be called from callbacks.
func (h *Hive) Len() int { return int(h.size.Load()) }

// Add registers g. Registering a group twice is a no-op.
func (h *Hive) Add(g *Group) error {
	if g == nil {
		return fmt.Errorf("%w: nil group", ErrInvalidArgument)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer.Running() {
		return fmt.Errorf("%w: cannot add groups while active", ErrInvalidState)
	}
	if _, ok := h.registry[g]; ok {
		return nil
	}
	h.registry[g] = &entry{group: g}
	h.size.Store(int64(len(h.registry)))
	h.log.Debug("group added", logx.Group(g.name), logx.Uint64("period_ms", g.periodMS))
	return nil
}

// Remove unregisters g. Removing an unknown group is a no-op.
func (h *Hive) Remove(g *Group) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer.Running() {
		return fmt.Errorf("%w: cannot remove groups while active", ErrInvalidState)
	}
	if _, ok := h.registry[g]; !ok {
		return nil
	}
	delete(h.registry, g)
	h.size.Store(int64(len(h.registry)))
	h.log.Debug("group removed", logx.Group(g.name))
	return nil
}

// Clear unregisters every group.
func (h *Hive) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer.Running() {
		return fmt.Errorf("%w: cannot clear while active", ErrInvalidState)
	}
	n := len(h.registry)
	h.registry = map[*Group]*entry{}
	h.size.Store(0)
	h.log.Debug("groups cleared", logx.Int("count", n))
	return nil
}

// Start activates the hive and returns the realized tick.
//
// The tick is the GCD of all registered periods; every group then fires once
// per period/tick ticks.
func (h *Hive) Start() (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer.Running() {
		return 0, fmt.Errorf("%w: already active", ErrInvalidState)
	}
	if len(h.registry) == 0 {
		return 0, fmt.Errorf("%w: no groups registered", ErrInvalidState)
	}

	periods := make([]uint64, 0, len(h.registry))
	for g := range h.registry {
		periods = append(periods, g.periodMS)
	}
	tickMS, err := gcd.List(periods)
	if err != nil {
		return 0, err
	}

	entries := make([]*entry, 0, len(h.registry))
	for g := range h.registry {
		every := g.periodMS / tickMS
		e := &entry{group: g, counter: every, counterInit: every}
		h.registry[g] = e
		entries = append(entries, e)
	}

	tick := time.Duration(tickMS) * time.Millisecond
	if err := h.timer.SetInterval(tick); err != nil {
		err = fmt.Errorf("hive: set timer interval %s: %w", tick, err)
		h.fail(err)
		return 0, err
	}
	if err := h.timer.Start(); err != nil {
		err = fmt.Errorf("hive: start timer: %w", err)
		h.fail(err)
		return 0, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &activation{
		tick:      tick,
		startedAt: h.clock.Now(),
		entries:   entries,
		log:       h.log,
		lostLog:   rate.NewLimiter(h.lostLimit, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	h.current.Store(a)
	go a.consume(ctx, h.timer.C())

	h.log.Info("hive started", logx.Tick(tick), logx.Int("groups", len(entries)))
	return tick, nil
}

// StartSeconds is Start with the tick expressed in seconds.
func (h *Hive) StartSeconds() (float64, error) {
	tick, err := h.Start()
	if err != nil {
		return 0, err
	}
	return tick.Seconds(), nil
}

// Stop deactivates the hive. It returns once the consumer goroutine has
// exited, so no tick is observed after Stop returns.
func (h *Hive) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.timer.Running() {
		return fmt.Errorf("%w: not active", ErrInvalidState)
	}
	var stopErr error
	if err := h.timer.Stop(); err != nil {
		stopErr = fmt.Errorf("hive: stop timer: %w", err)
		h.fail(stopErr)
	}
	if a := h.current.Load(); a != nil && !a.stopped.Load() {
		a.cancel()
		<-a.done
		a.stopped.Store(true)
		h.log.Info("hive stopped",
			logx.Tick(a.tick),
			logx.Uint64("ticks", a.ticks.Load()),
			logx.Uint64("lost_ticks", a.lostTicks.Load()),
		)
	}
	return stopErr
}

// Shutdown stops the hive if it is active. It is the teardown hook for the
// process instance and is safe to call more than once.
func (h *Hive) Shutdown() {
	if !h.Running() {
		return
	}
	if err := h.Stop(); err != nil {
		h.log.Debug("shutdown stop", logx.Err(err))
	}
}

// Tick returns the tick of the current or last activation.
func (h *Hive) Tick() time.Duration {
	if a := h.current.Load(); a != nil {
		return a.tick
	}
	return 0
}

// Stats returns counters for the current or last activation.
// It does not take the hive lock and may be called from callbacks.
func (h *Hive) Stats() Stats {
	st := Stats{State: StateInactive}
	if h.Running() {
		st.State = StateActive
	}
	a := h.current.Load()
	if a == nil {
		return st
	}
	st.Tick = a.tick
	st.StartedAt = a.startedAt
	st.Ticks = a.ticks.Load()
	st.LostTicks = a.lostTicks.Load()
	st.Groups = make([]GroupStats, 0, len(a.entries))
	for _, e := range a.entries {
		st.Groups = append(st.Groups, GroupStats{
			Name:      e.group.name,
			Period:    e.group.Interval(),
			Every:     e.counterInit,
			Fired:     e.fired.Load(),
			Callbacks: e.group.Len(),
		})
	}
	return st
}

func (h *Hive) fail(err error) {
	if h.fatal != nil {
		h.fatal(err)
		return
	}
	h.log.Error("fatal timer failure", logx.Err(err))
	os.Exit(1)
}

// consume is the consumer goroutine. It is the only caller of Group.invoke.
func (a *activation) consume(ctx context.Context, ticks <-chan time.Time) {
	defer close(a.done)
	last := a.startedAt
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticks:
			if ctx.Err() != nil {
				return
			}
			a.noteGap(last, now)
			last = now
			for _, e := range a.entries {
				e.counter--
				if e.counter == 0 {
					e.counter = e.counterInit
					e.fired.Add(1)
					e.group.invoke()
				}
			}
			a.ticks.Add(1)
		}
	}
}

// noteGap counts ticks the timer dropped between two deliveries.
func (a *activation) noteGap(last, now time.Time) {
	gap := now.Sub(last)
	if gap <= a.tick+a.tick/2 {
		return
	}
	lost := uint64((gap+a.tick/2)/a.tick) - 1
	total := a.lostTicks.Add(lost)
	if a.lostLog.Allow() {
		a.log.Warn("ticks lost",
			logx.Uint64("lost", lost),
			logx.Uint64("lost_total", total),
			logx.Duration("gap", gap),
			logx.Tick(a.tick),
		)
	}
}
