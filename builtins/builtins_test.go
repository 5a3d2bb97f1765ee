package builtins

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBertBuilds(t *testing.T) {
	g, outID, err := Bert(0.6, 0.6, 7)
	require.NoError(t, err)
	require.Greater(t, g.NumOps(), 0)
	out := g.Tensor(outID)
	require.True(t, out.IsOutput)
	require.NoError(t, g.RunPropagation())
}

func TestDeepFMBuilds(t *testing.T) {
	g, outID, err := DeepFM(0.5, 0.5, 11)
	require.NoError(t, err)
	out := g.Tensor(outID)
	require.Equal(t, 1, out.Rank())
	require.NoError(t, g.RunPropagation())
}

func TestMemTestBuilds(t *testing.T) {
	g, outID, err := MemTest(0.8, 0.8, 3)
	require.NoError(t, err)
	require.Equal(t, memTestChainLength, g.NumOps())
	require.NoError(t, g.RunPropagation())
	require.Equal(t, 2, g.Tensor(outID).Rank())
}

func TestDefaultChainBuilds(t *testing.T) {
	g, outID, err := DefaultChain(0.5, 0.5, 1)
	require.NoError(t, err)
	require.Equal(t, 2, g.NumOps())
	require.NoError(t, g.RunPropagation())
	require.NotNil(t, g.Tensor(outID))
}

func TestBuildDispatch(t *testing.T) {
	for _, name := range []string{"bert", "deepfm", "mem_test", "anything-else"} {
		g, _, err := Build(name, 0.5, 0.5, 42)
		require.NoError(t, err, "name=%s", name)
		require.NotNil(t, g)
	}
}

func TestBuildUsesAllSeeds(t *testing.T) {
	g1, out1, err := Build("bert", 0.5, 0.5, 1)
	require.NoError(t, err)
	g2, out2, err := Build("bert", 0.5, 0.5, 2)
	require.NoError(t, err)
	require.NoError(t, g1.RunPropagation())
	require.NoError(t, g2.RunPropagation())
	require.Equal(t, g1.Tensor(out1).Rank(), g2.Tensor(out2).Rank())
}
