package gcd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b, want int
	}{
		{10, 5, 5},
		{5, 10, 5},
		{0, 7, 7},
		{7, 0, 7},
		{0, 0, 0},
		{12, 18, 6},
		{17, 31, 1},
		{250, 100, 50},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, Of(tt.a, tt.b), "Of(%d, %d)", tt.a, tt.b)
	}
}

func TestOfProperties(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := uint64(rng.Intn(100000) + 1)
		b := uint64(rng.Intn(100000) + 1)
		g := Of(a, b)
		require.Equal(t, g, Of(b, a), "commutative for %d, %d", a, b)
		require.Zero(t, a%g, "%d does not divide %d", g, a)
		require.Zero(t, b%g, "%d does not divide %d", g, b)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	got, err := List([]uint64{10, 20, 30, 40, 35})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	got, err = List([]uint64{10, 20, 30, 40, 37})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)

	got, err = List([]uint64{100, 500, 1000, 250})
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got)

	single, err := List([]int{42})
	require.NoError(t, err)
	assert.Equal(t, 42, single)
}

func TestListEmpty(t *testing.T) {
	t.Parallel()
	_, err := List([]uint64(nil))
	require.ErrorIs(t, err, ErrInvalidArgument)
}
