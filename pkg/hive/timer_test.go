package hive

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTimerLifecycle(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClock()
	tm := NewClockTimer(fc)

	assert.False(t, tm.Running())
	assert.Nil(t, tm.C())
	require.Error(t, tm.Start(), "start without interval")
	require.Error(t, tm.SetInterval(0))
	require.Error(t, tm.Stop())

	require.NoError(t, tm.SetInterval(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, tm.Interval())
	require.NoError(t, tm.Start())
	require.ErrorIs(t, tm.Start(), errTimerRunning)
	assert.True(t, tm.Running())

	fc.Advance(20 * time.Millisecond)
	select {
	case <-tm.C():
	case <-time.After(time.Second):
		t.Fatal("no tick delivered")
	}

	require.NoError(t, tm.Stop())
	require.ErrorIs(t, tm.Stop(), errTimerNotRunning)
	assert.False(t, tm.Running())
}

func TestClockTimerDropsTicksForSlowReceiver(t *testing.T) {
	t.Parallel()
	fc := clockwork.NewFakeClock()
	tm := NewClockTimer(fc)
	require.NoError(t, tm.SetInterval(10*time.Millisecond))
	require.NoError(t, tm.Start())
	t.Cleanup(func() { _ = tm.Stop() })

	fc.Advance(50 * time.Millisecond)
	got := 0
	for {
		select {
		case <-tm.C():
			got++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, got)
}
