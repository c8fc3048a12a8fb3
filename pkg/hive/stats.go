package hive

import "time"

// State is the hive lifecycle state.
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// GroupStats describes one group of the current (or last) activation.
type GroupStats struct {
	Name      string
	Period    time.Duration
	Every     uint64 // ticks between firings
	Fired     uint64
	Callbacks int
}

// Stats is a point-in-time view of the hive.
//
// Tick, StartedAt, Ticks, LostTicks and Groups describe the current
// activation, or the last one once stopped. They are zero before the first
// Start.
type Stats struct {
	State     State
	Tick      time.Duration
	StartedAt time.Time
	Ticks     uint64
	LostTicks uint64
	Groups    []GroupStats
}
