package bench

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const scenario5 = `[(1,3),(0,2),(0,2),(0,1)]
['ajac,acaj->a','ikbd,bdik->bik','bik,ikab->a','a,a->a']
[(2,2,2,2),(2,2,2,2),(2,2,2,2),(2,2,2,2),(2,2,2,2)]
`

func TestParseScenario5(t *testing.T) {
	d, err := Parse(scenario5)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{1, 3}, {0, 2}, {0, 2}, {0, 1}}, d.Path)
	require.Equal(t, []string{"ajac,acaj->a", "ikbd,bdik->bik", "bik,ikab->a", "a,a->a"}, d.Einsums)
	require.Len(t, d.Sizes, 5)
	for _, sz := range d.Sizes {
		require.Equal(t, []int{2, 2, 2, 2}, sz)
	}
}

func TestParseMissingLine(t *testing.T) {
	_, err := Parse("[(0,1)]\n['a->a']\n")
	require.Error(t, err)
}

func TestParseMismatchedStepCount(t *testing.T) {
	_, err := Parse("[(0,1),(0,1)]\n['a,a->a']\n[(2,),(2,),(2,)]\n")
	require.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	d, err := Parse(scenario5)
	require.NoError(t, err)

	d2, err := Parse(d.String())
	require.NoError(t, err)
	require.Equal(t, d, d2)
}

// TestBuildTreeScenario5 checks that a 4-step contraction path over five
// rank-4 leaves yields 9 tensors total (5 leaves + 4 operator outputs),
// 4 operator nodes, and a rank-1 output.
func TestBuildTreeScenario5(t *testing.T) {
	d, err := Parse(scenario5)
	require.NoError(t, err)

	g, outID, err := BuildTree(d, 1.0, 42)
	require.NoError(t, err)

	require.Equal(t, 9, g.NumTensors())
	require.Equal(t, 4, g.NumOps())
	require.Equal(t, 1, g.Tensor(outID).Rank())

	require.NoError(t, g.RunPropagation())
}

func TestBuildTreeInvalidIndex(t *testing.T) {
	d := &Descriptor{
		Path:    [][2]int{{0, 5}},
		Einsums: []string{"a,a->a"},
		Sizes:   [][]int{{2}, {2}},
	}
	_, _, err := BuildTree(d, 1.0, 1)
	require.Error(t, err)
}
