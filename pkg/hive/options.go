package hive

import (
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	logx "tickmux/pkg/logx"
)

type Option func(*Hive)

// WithTimer sets the tick source. It takes precedence over WithClock.
func WithTimer(t Timer) Option {
	return func(h *Hive) { h.timer = t }
}

// WithClock drives the hive from clock through a ClockTimer.
// Tests pass a clockwork fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Hive) { h.clock = clock }
}

func WithLogger(log logx.Logger) Option {
	return func(h *Hive) { h.log = log }
}

// WithFatalHandler replaces the handler for unrecoverable timer failures.
// The default logs the error and exits the process with status 1.
func WithFatalHandler(fn func(error)) Option {
	return func(h *Hive) { h.fatal = fn }
}

// WithLostTickLogRate limits how often lost ticks are logged.
// Lost ticks are always counted in Stats.
func WithLostTickLogRate(limit rate.Limit) Option {
	return func(h *Hive) { h.lostLimit = limit }
}
