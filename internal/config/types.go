package config

// Config is the tickmuxd configuration file (json or yaml).
//
// Example (yaml):
//
//	logging:
//	  level: info
//	  console: true
//	hive:
//	  groups:
//	    - { name: fast, period: 100ms, callbacks: 2 }
//	    - { name: slow, period: 1s }
//	report:
//	  enabled: true
//	  schedule: "@every 10s"
//	storage:
//	  driver: file
//	  path: ./var/tickmux
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Hive    HiveConfig     `json:"hive"`
	Report  ReportConfig   `json:"report"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HiveConfig describes the groups the probe registers.
//
// All durations are Go duration strings (e.g. "50ms", "1s").
// Group periods must be whole milliseconds.
type HiveConfig struct {
	Groups []GroupConfig `json:"groups" validate:"required,min=1,dive"`

	// LostTickLogEvery limits "ticks lost" warnings to one per interval.
	// Default: "10s".
	LostTickLogEvery string `json:"lost_tick_log_every,omitempty"`
}

type GroupConfig struct {
	Name   string `json:"name" validate:"required"`
	Period string `json:"period" validate:"required"`
	// Callbacks is the number of counting callbacks registered in the group.
	// Default: 1.
	Callbacks int `json:"callbacks,omitempty" validate:"gte=0,lte=1024"`
}

// ReportConfig controls the periodic stats report.
//
// Schedule accepts cron expressions (5 or 6 fields) and descriptors such as
// "@every 30s" or "@hourly". Default: "@every 10s".
type ReportConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"
}

// StorageConfig controls the optional run history store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./var/tickmux" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path" validate:"required_unless=Driver none"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
