package hive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGroupRejectsZeroPeriod(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, g)
}

func TestNewGroupRejectsOverflowingPeriod(t *testing.T) {
	t.Parallel()
	for _, p := range []uint64{1 << 63, MaxPeriodMS + 1} {
		g, err := NewGroup(p)
		require.ErrorIs(t, err, ErrInvalidArgument, "period %d", p)
		assert.Nil(t, g)
	}
}

func TestGroupInterval(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(250)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, g.Interval())
	assert.InDelta(t, 0.25, g.IntervalSeconds(), 1e-9)
	assert.Equal(t, uint64(250), g.Period())
	assert.Equal(t, "250ms", g.Name())

	named, err := NewNamedGroup("heartbeat", 1000)
	require.NoError(t, err)
	assert.Equal(t, "heartbeat", named.Name())
}

func TestGroupDeduplicatesCallbacks(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(100)
	require.NoError(t, err)

	calls := 0
	cb := NewFunc(func() { calls++ })
	g.AddCallbackFunction(cb)
	g.AddCallbackFunction(cb)
	assert.Equal(t, 1, g.Len())

	g.invoke()
	assert.Equal(t, 1, calls)
}

func TestGroupDistinctFuncsFireSeparately(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(100)
	require.NoError(t, err)

	calls := 0
	fn := func() { calls++ }
	g.AddCallbackFunction(NewFunc(fn))
	g.AddCallbackFunction(NewFunc(fn))
	g.invoke()
	assert.Equal(t, 2, calls)
}

func TestGroupRemoveCallback(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(100)
	require.NoError(t, err)

	var a, b int
	cbA := NewFunc(func() { a++ })
	cbB := NewFunc(func() { b++ })
	g.AddCallbackFunction(cbA)
	g.AddCallbackFunction(cbB)

	g.RemoveCallbackFunction(cbA)
	g.RemoveCallbackFunction(cbA) // absent: no-op
	g.RemoveCallbackFunction(nil)
	g.AddCallbackFunction(nil)

	g.invoke()
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, g.Len())
}

type countingCallback struct{ n int }

func (c *countingCallback) Fire() { c.n++ }

func TestGroupAcceptsCallbackImplementations(t *testing.T) {
	t.Parallel()
	g, err := NewGroup(10)
	require.NoError(t, err)

	c := &countingCallback{}
	g.AddCallbackFunction(c)
	g.AddCallbackFunction(c)
	g.invoke()
	g.invoke()
	assert.Equal(t, 2, c.n)
}
