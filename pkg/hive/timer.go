package hive

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is the periodic tick source driving a Hive.
//
// C delivers one value per elapsed interval while the timer runs. Receiving
// from it is the consumer's only blocking point; a slow receiver loses ticks
// rather than queueing them. Implementations must be safe for concurrent use.
type Timer interface {
	SetInterval(d time.Duration) error
	Start() error
	Stop() error
	Running() bool
	C() <-chan time.Time
}

var (
	errTimerRunning    = errors.New("timer already running")
	errTimerNotRunning = errors.New("timer not running")
)

// ClockTimer is a Timer backed by a clockwork.Clock ticker.
// With clockwork.NewRealClock it wraps a time.Ticker.
type ClockTimer struct {
	clock clockwork.Clock

	mu       sync.Mutex
	interval time.Duration
	ticker   clockwork.Ticker
}

var _ Timer = (*ClockTimer)(nil)

// NewClockTimer returns a stopped timer on clock. A nil clock means the real clock.
func NewClockTimer(clock clockwork.Clock) *ClockTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockTimer{clock: clock}
}

// SetInterval sets the tick interval. A running timer is re-armed with it.
func (t *ClockTimer) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("timer interval must be > 0, got %s", d)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	if t.ticker != nil {
		t.ticker.Reset(d)
	}
	return nil
}

// Interval returns the configured interval.
func (t *ClockTimer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *ClockTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker != nil {
		return errTimerRunning
	}
	if t.interval <= 0 {
		return errors.New("timer interval not set")
	}
	t.ticker = t.clock.NewTicker(t.interval)
	return nil
}

func (t *ClockTimer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return errTimerNotRunning
	}
	t.ticker.Stop()
	t.ticker = nil
	return nil
}

func (t *ClockTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

// C returns the tick channel of the current run, or nil when stopped.
func (t *ClockTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil {
		return nil
	}
	return t.ticker.Chan()
}
