package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file (build tag sqlite)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Event values for RunRecord.
const (
	EventReport = "report"
	EventStop   = "stop"
)

// RunRecord is one snapshot of a hive activation.
type RunRecord struct {
	RunID     string        `json:"run_id"`
	At        time.Time     `json:"at"`
	Event     string        `json:"event"`
	Tick      time.Duration `json:"tick"`
	Uptime    time.Duration `json:"uptime"`
	Ticks     uint64        `json:"ticks"`
	LostTicks uint64        `json:"lost_ticks"`
	Groups    []GroupRecord `json:"groups"`
}

type GroupRecord struct {
	Name      string `json:"name"`
	PeriodMS  uint64 `json:"period_ms"`
	Callbacks int    `json:"callbacks"`
	Expected  uint64 `json:"expected"`
	Fired     uint64 `json:"fired"`
	Calls     uint64 `json:"calls"` // callback invocations across the group
}
