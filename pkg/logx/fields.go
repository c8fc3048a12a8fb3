package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Keys shared by every tickmux component, so lines from the hive, the probe
// and the reporter can be joined on them.
const (
	KeyComponent = "comp"
	KeyRun       = "run_id"
	KeyGroup     = "group"
	KeyTick      = "tick"
)

// Field mutates a zerolog event. Fields apply in order; a repeated key keeps
// both values, as zerolog does.
type Field func(e *zerolog.Event)

func String(k, v string) Field {
	return func(e *zerolog.Event) { e.Str(k, v) }
}

func Int(k string, v int) Field {
	return func(e *zerolog.Event) { e.Int(k, v) }
}

func Uint64(k string, v uint64) Field {
	return func(e *zerolog.Event) { e.Uint64(k, v) }
}

func Bool(k string, v bool) Field {
	return func(e *zerolog.Event) { e.Bool(k, v) }
}

func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}

func Any(k string, v any) Field {
	return func(e *zerolog.Event) { e.Interface(k, v) }
}

func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Component tags a line with the subsystem that wrote it.
func Component(name string) Field { return String(KeyComponent, name) }

// Run tags a line with a probe run id. Empty ids are omitted.
func Run(id string) Field {
	return func(e *zerolog.Event) {
		if id != "" {
			e.Str(KeyRun, id)
		}
	}
}

// Group tags a line with a hive group name.
func Group(name string) Field { return String(KeyGroup, name) }

// Tick records a hive tick in milliseconds.
func Tick(d time.Duration) Field { return Duration(KeyTick, d) }
