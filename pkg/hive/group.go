package hive

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

// Callback is a zero-argument function fired by a Group.
//
// Callbacks are identified by interface equality, so implementations must be
// comparable; pointer receivers are the usual choice. Fire must not panic.
type Callback interface {
	Fire()
}

// Func adapts a plain function to Callback.
// Every NewFunc call yields a distinct identity, even for the same fn.
type Func struct {
	fn func()
}

// NewFunc wraps fn.
func NewFunc(fn func()) *Func {
	return &Func{fn: fn}
}

// Fire calls the wrapped function.
func (f *Func) Fire() {
	if f != nil && f.fn != nil {
		f.fn()
	}
}

// Group is a set of callbacks sharing one firing period.
//
// The period is fixed at creation. The callback set may change at any time;
// a change made while the group is scheduled takes effect on the next firing.
type Group struct {
	name     string
	periodMS uint64

	mu        sync.RWMutex
	callbacks map[Callback]struct{}
	// snapshot is rebuilt on every mutation so invoke can iterate without
	// holding the lock while user code runs.
	snapshot []Callback
}

// NewGroup creates a group firing every periodMS milliseconds.
func NewGroup(periodMS uint64) (*Group, error) {
	return NewNamedGroup("", periodMS)
}

// MaxPeriodMS is the longest period whose tick still fits a time.Duration.
const MaxPeriodMS = uint64(math.MaxInt64 / int64(time.Millisecond))

// NewNamedGroup is NewGroup with a name used in logs and stats.
func NewNamedGroup(name string, periodMS uint64) (*Group, error) {
	if periodMS == 0 {
		return nil, fmt.Errorf("%w: group period must be > 0ms", ErrInvalidArgument)
	}
	if periodMS > MaxPeriodMS {
		return nil, fmt.Errorf("%w: group period %dms exceeds %dms", ErrInvalidArgument, periodMS, MaxPeriodMS)
	}
	if name == "" {
		name = strconv.FormatUint(periodMS, 10) + "ms"
	}
	return &Group{
		name:      name,
		periodMS:  periodMS,
		callbacks: map[Callback]struct{}{},
	}, nil
}

// AddCallbackFunction adds cb to the group. Adding the same callback again
// has no effect. A nil callback is ignored.
func (g *Group) AddCallbackFunction(cb Callback) {
	if cb == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.callbacks[cb]; ok {
		return
	}
	g.callbacks[cb] = struct{}{}
	g.rebuildLocked()
}

// RemoveCallbackFunction removes cb from the group if present.
func (g *Group) RemoveCallbackFunction(cb Callback) {
	if cb == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.callbacks[cb]; !ok {
		return
	}
	delete(g.callbacks, cb)
	g.rebuildLocked()
}

func (g *Group) rebuildLocked() {
	snap := make([]Callback, 0, len(g.callbacks))
	for cb := range g.callbacks {
		snap = append(snap, cb)
	}
	g.snapshot = snap
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Period returns the period in milliseconds.
func (g *Group) Period() uint64 { return g.periodMS }

// Interval returns the period as a duration.
func (g *Group) Interval() time.Duration {
	return time.Duration(g.periodMS) * time.Millisecond
}

// IntervalSeconds returns the period in seconds.
func (g *Group) IntervalSeconds() float64 {
	return float64(g.periodMS) / 1000
}

// Len returns the number of callbacks in the group.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.callbacks)
}

// invoke fires every callback once, in unspecified order.
// Only the hive consumer goroutine calls it.
func (g *Group) invoke() {
	g.mu.RLock()
	snap := g.snapshot
	g.mu.RUnlock()
	for _, cb := range snap {
		cb.Fire()
	}
}
