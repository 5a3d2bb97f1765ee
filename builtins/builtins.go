// Package builtins provides a handful of fixed, hard-coded sparsity.Graph
// topologies used by the CLI's "graph" subcommand as reproducible
// end-to-end exercises: a small transformer-style attention block ("bert"),
// a factorization-machine interaction term ("deepfm"), a long matmul chain
// sized to stress the graph arena ("mem_test"), and a minimal two-step
// matmul-then-add chain as the default.
package builtins

import (
	"fmt"

	"github.com/gomlx/spa/sparsity"
	"github.com/pkg/errors"
)

// Build dispatches to one of the named built-in graphs. Any name other than
// "bert", "deepfm", or "mem_test" falls back to DefaultChain, matching the
// CLI's "bert, deepfm, mem_test, default small chain" option list.
func Build(name string, rowDensity, colDensity float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	switch name {
	case "bert":
		return Bert(rowDensity, colDensity, seed)
	case "deepfm":
		return DeepFM(rowDensity, colDensity, seed)
	case "mem_test":
		return MemTest(rowDensity, colDensity, seed)
	default:
		return DefaultChain(rowDensity, colDensity, seed)
	}
}

func leafMatrix(rows, cols int, rowDensity, colDensity float64, seed uint64, name string) (*sparsity.Tensor, error) {
	return sparsity.NewTensorFromDensities([]int{rows, cols}, []float64{rowDensity, colDensity}, name, seed)
}

func leafVector(n int, density float64, seed uint64, name string) (*sparsity.Tensor, error) {
	return sparsity.NewTensorFromDensities([]int{n}, []float64{density}, name, seed)
}

const bertDim = 16

// Bert builds a single-head self-attention block: Q, K, V projections of an
// input X by three weight matrices, a score matrix Q·K^T, an attention
// output S·V, and a residual add back onto X.
func Bert(rowDensity, colDensity float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	g := sparsity.NewGraph()
	n, d := bertDim, bertDim

	x, err := leafMatrix(n, d, rowDensity, colDensity, seed, "X")
	if err != nil {
		return nil, 0, err
	}
	wq, err := leafMatrix(d, d, rowDensity, colDensity, seed+1, "Wq")
	if err != nil {
		return nil, 0, err
	}
	wk, err := leafMatrix(d, d, rowDensity, colDensity, seed+2, "Wk")
	if err != nil {
		return nil, 0, err
	}
	wv, err := leafMatrix(d, d, rowDensity, colDensity, seed+3, "Wv")
	if err != nil {
		return nil, 0, err
	}

	xID, _ := g.AddInputTensor(x)
	wqID, _ := g.AddInputTensor(wq)
	wkID, _ := g.AddInputTensor(wk)
	wvID, _ := g.AddInputTensor(wv)

	q, err := addEinsum(g, "Q", "nd,de->ne", xID, wqID)
	if err != nil {
		return nil, 0, err
	}
	k, err := addEinsum(g, "K", "nd,de->ne", xID, wkID)
	if err != nil {
		return nil, 0, err
	}
	v, err := addEinsum(g, "V", "nd,de->ne", xID, wvID)
	if err != nil {
		return nil, 0, err
	}
	scores, err := addEinsum(g, "S", "ne,me->nm", q, k)
	if err != nil {
		return nil, 0, err
	}
	attn, err := addEinsum(g, "Attn", "nm,me->ne", scores, v)
	if err != nil {
		return nil, 0, err
	}

	out, err := sparsity.NewEmptyOutput([]int{n, d}, "Out")
	if err != nil {
		return nil, 0, err
	}
	if _, err := g.AddAdd("Residual", []sparsity.TensorID{attn, xID}, out); err != nil {
		return nil, 0, err
	}

	if err := g.SetOutputs(out.ID); err != nil {
		return nil, 0, err
	}
	if err := g.Finalize(); err != nil {
		return nil, 0, err
	}
	return g, out.ID, nil
}

const deepfmFeatures = 32
const deepfmFactors = 8

// DeepFM builds a simplified factorization-machine interaction term: a
// reduce-sum embedding term, a cross term between two embedding tables, and
// a linear term, all added together.
func DeepFM(rowDensity, colDensity float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	g := sparsity.NewGraph()
	f, k := deepfmFeatures, deepfmFactors

	emb1, err := leafMatrix(f, k, rowDensity, colDensity, seed, "Emb1")
	if err != nil {
		return nil, 0, err
	}
	emb2, err := leafMatrix(f, k, rowDensity, colDensity, seed+1, "Emb2")
	if err != nil {
		return nil, 0, err
	}
	lin, err := leafVector(k, rowDensity, seed+2, "Linear")
	if err != nil {
		return nil, 0, err
	}

	emb1ID, _ := g.AddInputTensor(emb1)
	emb2ID, _ := g.AddInputTensor(emb2)
	linID, _ := g.AddInputTensor(lin)

	sum1, err := addEinsum(g, "Sum1", "fk->k", emb1ID)
	if err != nil {
		return nil, 0, err
	}
	cross, err := addEinsum(g, "Cross", "fk,fk->k", emb1ID, emb2ID)
	if err != nil {
		return nil, 0, err
	}

	fm, err := sparsity.NewEmptyOutput([]int{k}, "FM")
	if err != nil {
		return nil, 0, err
	}
	if _, err := g.AddAdd("FMSum", []sparsity.TensorID{sum1, cross}, fm); err != nil {
		return nil, 0, err
	}

	out, err := sparsity.NewEmptyOutput([]int{k}, "Out")
	if err != nil {
		return nil, 0, err
	}
	if _, err := g.AddAdd("WithLinear", []sparsity.TensorID{fm.ID, linID}, out); err != nil {
		return nil, 0, err
	}

	if err := g.SetOutputs(out.ID); err != nil {
		return nil, 0, err
	}
	if err := g.Finalize(); err != nil {
		return nil, 0, err
	}
	return g, out.ID, nil
}

const memTestChainLength = 24
const memTestDim = 8

// MemTest builds a long chain of square matmuls, deliberately many small
// operator nodes rather than few large ones, to exercise the graph arena
// and the propagation work-list under many operators.
func MemTest(rowDensity, colDensity float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	g := sparsity.NewGraph()
	n := memTestDim

	first, err := leafMatrix(n, n, rowDensity, colDensity, seed, "A0")
	if err != nil {
		return nil, 0, err
	}
	cur, _ := g.AddInputTensor(first)

	for i := 1; i <= memTestChainLength; i++ {
		w, err := leafMatrix(n, n, rowDensity, colDensity, seed+uint64(i), fmt.Sprintf("A%d", i))
		if err != nil {
			return nil, 0, err
		}
		wID, _ := g.AddInputTensor(w)
		next, err := addEinsum(g, fmt.Sprintf("step%d", i), "ij,jk->ik", cur, wID)
		if err != nil {
			return nil, 0, err
		}
		cur = next
	}

	if err := g.SetOutputs(cur); err != nil {
		return nil, 0, err
	}
	if err := g.Finalize(); err != nil {
		return nil, 0, err
	}
	return g, cur, nil
}

// DefaultChain builds the minimal two-step matmul-then-add graph used when
// no other built-in name matches.
func DefaultChain(rowDensity, colDensity float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	g := sparsity.NewGraph()
	n := 4

	x, err := leafMatrix(n, n, rowDensity, colDensity, seed, "X")
	if err != nil {
		return nil, 0, err
	}
	w, err := leafMatrix(n, n, rowDensity, colDensity, seed+1, "W")
	if err != nil {
		return nil, 0, err
	}
	b, err := leafMatrix(n, n, rowDensity, colDensity, seed+2, "B")
	if err != nil {
		return nil, 0, err
	}

	xID, _ := g.AddInputTensor(x)
	wID, _ := g.AddInputTensor(w)
	bID, _ := g.AddInputTensor(b)

	prod, err := addEinsum(g, "Prod", "ij,jk->ik", xID, wID)
	if err != nil {
		return nil, 0, err
	}

	out, err := sparsity.NewEmptyOutput(nil, "Out")
	if err != nil {
		return nil, 0, err
	}
	if _, err := g.AddAdd("Sum", []sparsity.TensorID{prod, bID}, out); err != nil {
		return nil, 0, err
	}

	if err := g.SetOutputs(out.ID); err != nil {
		return nil, 0, err
	}
	if err := g.Finalize(); err != nil {
		return nil, 0, err
	}
	return g, out.ID, nil
}

// addEinsum registers an Einsum operator whose output sizes are derived
// from the einsum string, and returns the output tensor's handle.
func addEinsum(g *sparsity.Graph, name, eq string, inputs ...sparsity.TensorID) (sparsity.TensorID, error) {
	out, err := sparsity.NewEmptyOutput(nil, name)
	if err != nil {
		return 0, err
	}
	if _, err := g.AddEinsum(name, eq, inputs, out); err != nil {
		return 0, errors.Wrapf(err, "builtin graph: adding %s", name)
	}
	return out.ID, nil
}
