package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAllSet(t *testing.T) {
	v := NewAllSet()
	require.Equal(t, MaxSize, v.PopcountPrefix(MaxSize))
}

func TestNewAllClear(t *testing.T) {
	v := NewAllClear()
	require.Equal(t, 0, v.PopcountPrefix(MaxSize))
}

func TestSetAndTest(t *testing.T) {
	v := NewAllClear()
	v.Set(3, true)
	v.Set(17, true)
	v.Set(999, true)
	v.Set(1023, true)

	require.True(t, v.Test(3))
	require.True(t, v.Test(17))
	require.False(t, v.Test(4))

	require.Equal(t, 3, v.PopcountPrefix(1000))
	require.Equal(t, 4, v.PopcountPrefix(1024))
	require.Equal(t, 2, v.PopcountPrefix(18))
}

func TestAndOrXor(t *testing.T) {
	var a, b SparsityVector
	a.Set(0, true)
	a.Set(1, true)
	b.Set(1, true)
	b.Set(2, true)

	and := a.And(b)
	require.True(t, and.Test(1))
	require.False(t, and.Test(0))
	require.False(t, and.Test(2))

	or := a.Or(b)
	require.True(t, or.Test(0))
	require.True(t, or.Test(1))
	require.True(t, or.Test(2))

	xor := a.Xor(b)
	require.True(t, xor.Test(0))
	require.False(t, xor.Test(1))
	require.True(t, xor.Test(2))
}

func TestAndInPlaceOnlyNarrows(t *testing.T) {
	v := NewAllSet()
	other := NewAllClear()
	other.Set(5, true)

	before := v.PopcountPrefix(MaxSize)
	v.AndInPlace(other)
	after := v.PopcountPrefix(MaxSize)

	require.LessOrEqual(t, after, before)
	require.Equal(t, 1, after)
	require.True(t, v.Test(5))
}

func TestRandomWithDensityDeterministic(t *testing.T) {
	v1, err := RandomWithDensity(0.5, 100, 42)
	require.NoError(t, err)
	v2, err := RandomWithDensity(0.5, 100, 42)
	require.NoError(t, err)
	require.True(t, v1.Equal(v2))

	v3, err := RandomWithDensity(0.5, 100, 43)
	require.NoError(t, err)
	require.False(t, v1.Equal(v3))
}

func TestRandomWithDensityClearedCount(t *testing.T) {
	v, err := RandomWithDensity(0.25, 100, 7)
	require.NoError(t, err)
	require.Equal(t, 75, v.PopcountPrefix(100))
}

func TestRandomWithDensityOverflow(t *testing.T) {
	_, err := RandomWithDensity(0.5, MaxSize+1, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestEqual(t *testing.T) {
	a := NewAllSet()
	b := NewAllSet()
	require.True(t, a.Equal(b))
	b.Set(10, false)
	require.False(t, a.Equal(b))
}
