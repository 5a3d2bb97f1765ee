package sparsity

import (
	"errors"
	"testing"

	"github.com/gomlx/spa/bitset"
	"github.com/gomlx/spa/spaerr"
	"github.com/stretchr/testify/require"
)

// bitsFromBinary builds a SparsityVector of the given length from a string
// of '0'/'1' read as a binary number: the rightmost character is bit 0.
// This matches the "row=01" style notation used in the scenarios below, where
// "01" denotes bit0 set, bit1 clear.
func bitsFromBinary(s string) bitset.SparsityVector {
	v := bitset.NewAllClear()
	n := len(s)
	for k := 0; k < n; k++ {
		if s[n-1-k] == '1' {
			v.Set(k, true)
		}
	}
	return v
}

func mustTensor(t *testing.T, sizes []int, bits []bitset.SparsityVector, name string) *Tensor {
	tn, err := NewTensorFromBitsets(sizes, bits, name)
	require.NoError(t, err)
	return tn
}

func emptyOutput(t *testing.T, sizes []int, name string) *Tensor {
	tn, err := NewEmptyOutput(sizes, name)
	require.NoError(t, err)
	return tn
}

// TestTwoStepMatmul reproduces a two-step matmul chain end to end.
func TestTwoStepMatmul(t *testing.T) {
	g := NewGraph()

	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("11")}, "X1")
	w1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("11"), bitsFromBinary("10")}, "W1")
	x2 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitset.NewAllSet()}, "X2")
	w2 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitset.NewAllSet()}, "W2")

	x1ID, _ := g.AddInputTensor(x1)
	w1ID, _ := g.AddInputTensor(w1)
	x2ID, _ := g.AddInputTensor(x2)
	w2ID, _ := g.AddInputTensor(w2)

	o1 := emptyOutput(t, nil, "O1")
	_, err := g.AddEinsum("matmul1", "ik,kj->ij", []TensorID{x1ID, w1ID}, o1)
	require.NoError(t, err)

	o2 := emptyOutput(t, nil, "O2")
	_, err = g.AddEinsum("matmul2", "ik,kj->ij", []TensorID{x2ID, w2ID}, o2)
	require.NoError(t, err)

	o3 := emptyOutput(t, nil, "O3")
	_, err = g.AddEinsum("matmul3", "ik,kj->ij", []TensorID{o1.ID, o2.ID}, o3)
	require.NoError(t, err)

	require.NoError(t, g.SetOutputs(o3.ID))
	require.NoError(t, g.Finalize())
	require.NoError(t, g.RunPropagation())

	require.True(t, g.Tensor(o1.ID).Sparsities[0].Equal(bitsFromBinary("01")))
	require.True(t, g.Tensor(o1.ID).Sparsities[1].Equal(bitsFromBinary("10")))
	require.True(t, g.Tensor(o3.ID).Sparsities[0].Equal(bitsFromBinary("01")))
}

// TestAddOfThree reproduces an elementwise Add of three inputs.
func TestAddOfThree(t *testing.T) {
	g := NewGraph()

	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("01")}, "X1")
	x2 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("10")}, "X2")
	x3 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("01")}, "X3")

	x1ID, _ := g.AddInputTensor(x1)
	x2ID, _ := g.AddInputTensor(x2)
	x3ID, _ := g.AddInputTensor(x3)

	o1 := emptyOutput(t, []int{2, 2}, "O1")
	_, err := g.AddAdd("sum1", []TensorID{x1ID, x2ID, x3ID}, o1)
	require.NoError(t, err)

	require.NoError(t, g.SetOutputs(o1.ID))
	require.NoError(t, g.Finalize())
	require.NoError(t, g.RunPropagation())

	require.True(t, g.Tensor(o1.ID).Sparsities[0].Equal(bitsFromBinary("01")))
	require.True(t, g.Tensor(o1.ID).Sparsities[1].Equal(bitsFromBinary("11")))
}

// TestTranspose reproduces a transpose expressed as an Einsum.
func TestTranspose(t *testing.T) {
	g := NewGraph()

	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("10")}, "X1")
	x1ID, _ := g.AddInputTensor(x1)

	o1 := emptyOutput(t, nil, "O1")
	_, err := g.AddEinsum("transpose", "ij->ji", []TensorID{x1ID}, o1)
	require.NoError(t, err)

	require.NoError(t, g.SetOutputs(o1.ID))
	require.NoError(t, g.Finalize())
	require.NoError(t, g.RunPropagation())

	require.True(t, g.Tensor(o1.ID).Sparsities[0].Equal(bitsFromBinary("10")))
	require.True(t, g.Tensor(o1.ID).Sparsities[1].Equal(bitsFromBinary("01")))
}

// TestSharedInputNarrowedByBothConsumers exercises the multi-op interaction:
// a tensor consumed by two Einsum operators at the same reduction dimension
// gets narrowed by each operator's own intra transfer, and the result is
// visible to both.
func TestSharedInputNarrowedByBothConsumers(t *testing.T) {
	g := NewGraph()

	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitsFromBinary("01")}, "X1")
	w1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitsFromBinary("01")}, "W1")
	x2 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitset.NewAllSet()}, "X2")

	x1ID, _ := g.AddInputTensor(x1)
	w1ID, _ := g.AddInputTensor(w1)
	x2ID, _ := g.AddInputTensor(x2)

	o1 := emptyOutput(t, nil, "O1")
	_, err := g.AddEinsum("matmul1", "ik,kj->ij", []TensorID{x1ID, x2ID}, o1)
	require.NoError(t, err)

	o2 := emptyOutput(t, nil, "O2")
	_, err = g.AddEinsum("matmul2", "ik,kj->ij", []TensorID{w1ID, x2ID}, o2)
	require.NoError(t, err)

	require.NoError(t, g.SetOutputs(o1.ID, o2.ID))
	require.NoError(t, g.Finalize())
	require.NoError(t, g.RunPropagation())

	// X2's row (its reduction dim 'k' in both matmul1 and matmul2) must end
	// up narrowed by both X1.col and W1.col: AND(11, 01, 01) = 01.
	require.True(t, g.Tensor(x2ID).Sparsities[0].Equal(bitsFromBinary("01")))
}

func TestMonotonicityAcrossRepeatedForward(t *testing.T) {
	g := NewGraph()
	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("11")}, "X1")
	x2 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitset.NewAllSet(), bitset.NewAllSet()}, "X2")
	x1ID, _ := g.AddInputTensor(x1)
	x2ID, _ := g.AddInputTensor(x2)

	o1 := emptyOutput(t, nil, "O1")
	_, err := g.AddEinsum("matmul1", "ik,kj->ij", []TensorID{x1ID, x2ID}, o1)
	require.NoError(t, err)
	require.NoError(t, g.SetOutputs(o1.ID))
	require.NoError(t, g.Finalize())

	g.RunForward()
	after1 := g.Tensor(o1.ID).Sparsities[0]
	g.RunForward()
	after2 := g.Tensor(o1.ID).Sparsities[0]
	require.True(t, after1.Equal(after2), "a second forward pass must be idempotent")
}

// TestIndependentDirectionCalls exercises RunForward/RunIntra/RunBackward
// called on their own rather than through RunPropagation, as the CLI's
// einsum subcommand does when asked to run a subset of the three passes.
func TestIndependentDirectionCalls(t *testing.T) {
	g := NewGraph()

	x1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("01"), bitsFromBinary("11")}, "X1")
	w1 := mustTensor(t, []int{2, 2}, []bitset.SparsityVector{bitsFromBinary("11"), bitsFromBinary("10")}, "W1")
	x1ID, _ := g.AddInputTensor(x1)
	w1ID, _ := g.AddInputTensor(w1)

	o1 := emptyOutput(t, nil, "O1")
	_, err := g.AddEinsum("matmul1", "ik,kj->ij", []TensorID{x1ID, w1ID}, o1)
	require.NoError(t, err)
	require.NoError(t, g.SetOutputs(o1.ID))
	require.NoError(t, g.Finalize())

	// Backward alone, with no forward pass first, narrows nothing on O1
	// since O1 starts all-ones; it is still safe to call standalone.
	g.RunBackward()
	require.True(t, g.Tensor(o1.ID).Sparsities[0].Equal(bitset.NewAllSet()))

	g.RunForward()
	require.True(t, g.Tensor(o1.ID).Sparsities[0].Equal(bitsFromBinary("01")))

	// Intra has no effect here: matmul1 has only one consumer relationship
	// per input and both inputs are graph inputs already at their tightest
	// value, so calling it standalone must be a safe no-op.
	before := g.Tensor(w1ID).Sparsities[0]
	g.RunIntra()
	require.True(t, g.Tensor(w1ID).Sparsities[0].Equal(before))
}

func TestCycleDetected(t *testing.T) {
	g := NewGraph()
	a := mustTensor(t, []int{2}, []bitset.SparsityVector{bitset.NewAllSet()}, "A")
	aID, _ := g.AddInputTensor(a)

	b := emptyOutput(t, []int{2}, "B")
	opID, err := g.AddAdd("op1", []TensorID{aID}, b)
	require.NoError(t, err)

	// Force a cycle: make A's producer point back at op1, as if A were
	// itself produced downstream of B. This bypasses the normal
	// construction API deliberately to exercise Finalize's cycle check.
	g.Tensor(aID).Producer = opID
	g.Tensor(b.ID).Consumers = append(g.Tensor(b.ID).Consumers, opID)

	err = g.Finalize()
	require.Error(t, err)
	var se *spaerr.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, spaerr.CycleDetected, se.Kind)
}

func TestDuplicateProducer(t *testing.T) {
	g := NewGraph()
	a := mustTensor(t, []int{2}, []bitset.SparsityVector{bitset.NewAllSet()}, "A")
	aID, _ := g.AddInputTensor(a)

	out := emptyOutput(t, []int{2}, "Out")
	_, err := g.AddAdd("op1", []TensorID{aID}, out)
	require.NoError(t, err)

	_, err = g.AddAdd("op2", []TensorID{aID}, out)
	require.Error(t, err)
	var se *spaerr.Error
	require.True(t, errors.As(err, &se))
	require.Equal(t, spaerr.DuplicateProducer, se.Kind)
}
