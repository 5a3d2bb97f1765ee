package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChooseMode(t *testing.T) {
	require.Equal(t, Sparse, ChooseMode(100, 10, 0.5)) // 90% zero > 0.5
	require.Equal(t, Dense, ChooseMode(100, 60, 0.5))  // 40% zero <= 0.5
	require.Equal(t, Dense, ChooseMode(100, 100, 0.5)) // fully dense
}

func TestChooseModes(t *testing.T) {
	modes := ChooseModes([]int{100, 100}, []int{10, 90}, 0.5)
	require.Equal(t, []Mode{Sparse, Dense}, modes)
}

func TestLookupTokens(t *testing.T) {
	tok, ok := Lookup("CSR")
	require.True(t, ok)
	require.Equal(t, [2]Mode{Dense, Sparse}, tok.Modes)

	tok, ok = Lookup("DCSC")
	require.True(t, ok)
	require.Equal(t, []int{1, 0}, tok.Permutation)

	_, ok = Lookup("nope")
	require.False(t, ok)
}
