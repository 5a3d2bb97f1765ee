// Package sparsity implements the tensor/operator DAG and the three-pass
// sparsity propagation driver at the heart of SPA. It never
// inspects numeric tensor values: every computation here is over
// bitset.SparsityVector, the abstract domain of "which slices may be
// nonzero".
package sparsity

import (
	"strings"

	"github.com/gomlx/spa/backend"
	"github.com/gomlx/spa/bitset"
	"github.com/gomlx/spa/format"
	"github.com/gomlx/spa/spaerr"
)

// TensorID is a stable, non-owning handle to a Tensor inside a Graph's
// arena.
type TensorID int

// OpID is a stable, non-owning handle to an Op inside a Graph's arena.
type OpID int

// noProducer is the sentinel Producer value for a tensor with no producer
// (an input tensor).
const noProducer OpID = -1

// Tensor is one node of the computation graph: a name, a shape, one
// SparsityVector per dimension, and the edges connecting it to the
// operator that produces it (if any) and the operators that consume it.
type Tensor struct {
	ID         TensorID
	Name       string
	Sizes      []int
	Sparsities []bitset.SparsityVector
	IsOutput   bool
	Producer   OpID
	Consumers  []OpID
	Concrete   backend.ConcreteTensor

	// Modes records the per-dimension storage format CreateConcrete was
	// last called with, so an Op that consumes this tensor can name its
	// layout when assembling an expression for the external compiler.
	Modes backend.ModeSpec
}

// Rank returns the tensor's number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.Sizes)
}

func checkSizes(sizes []int) error {
	for d, sz := range sizes {
		if sz <= 0 {
			return spaerr.Newf(spaerr.DimOutOfBounds, "dimension %d has non-positive size %d", d, sz)
		}
		if sz > bitset.MaxSize {
			return spaerr.Wrap(spaerr.BitsetOverflow,
				"dimension size exceeds MaxSize", bitset.ErrOverflow)
		}
	}
	return nil
}

// NewTensorFromBitsets builds a Tensor with an explicit per-dimension
// SparsityVector. len(bitsets) must equal len(sizes).
func NewTensorFromBitsets(sizes []int, bitsets []bitset.SparsityVector, name string) (*Tensor, error) {
	if err := checkSizes(sizes); err != nil {
		return nil, err
	}
	if len(bitsets) != len(sizes) {
		return nil, spaerr.Newf(spaerr.RankMismatch,
			"tensor %q: %d bitsets given for rank %d", name, len(bitsets), len(sizes))
	}
	sp := make([]bitset.SparsityVector, len(sizes))
	copy(sp, bitsets)
	return &Tensor{
		Name:       name,
		Sizes:      append([]int(nil), sizes...),
		Sparsities: sp,
		Producer:   noProducer,
	}, nil
}

// NewTensorFromDensities builds a Tensor whose per-dimension bitsets are
// generated with bitset.RandomWithDensity, one density per dimension,
// deterministically from seed.
func NewTensorFromDensities(sizes []int, densities []float64, name string, seed uint64) (*Tensor, error) {
	if err := checkSizes(sizes); err != nil {
		return nil, err
	}
	if len(densities) != len(sizes) {
		return nil, spaerr.Newf(spaerr.RankMismatch,
			"tensor %q: %d densities given for rank %d", name, len(densities), len(sizes))
	}
	sp := make([]bitset.SparsityVector, len(sizes))
	for d, sz := range sizes {
		// Each dimension gets a distinct but deterministic sub-seed so that
		// sibling dimensions of the same tensor are not accidentally
		// correlated.
		v, err := bitset.RandomWithDensity(densities[d], sz, seed+uint64(d)*0x9E3779B97F4A7C15)
		if err != nil {
			return nil, spaerr.Wrap(spaerr.BitsetOverflow, "tensor "+name, err)
		}
		sp[d] = v
	}
	return &Tensor{
		Name:       name,
		Sizes:      append([]int(nil), sizes...),
		Sparsities: sp,
		Producer:   noProducer,
	}, nil
}

// NewEmptyOutput builds a Tensor with every bit set (top of the lattice),
// suitable as the not-yet-propagated output of an operator.
func NewEmptyOutput(sizes []int, name string) (*Tensor, error) {
	if err := checkSizes(sizes); err != nil {
		return nil, err
	}
	sp := make([]bitset.SparsityVector, len(sizes))
	for d := range sp {
		sp[d] = bitset.NewAllSet()
	}
	return &Tensor{
		Name:       name,
		Sizes:      append([]int(nil), sizes...),
		Sparsities: sp,
		Producer:   noProducer,
		IsOutput:   true,
	}, nil
}

// SparsityRatio estimates the fraction of structurally-zero elements as
// 1 - prod_d(popcount_prefix(sizes[d]) / sizes[d]). This over-approximates
// true density: it assumes full tensor-product support given the
// per-dimension nonzero slices, applied consistently; it is not a
// sampling-based approximation.
func (t *Tensor) SparsityRatio() float32 {
	ratio := 1.0
	for d, sz := range t.Sizes {
		if sz == 0 {
			continue
		}
		pop := t.Sparsities[d].PopcountPrefix(sz)
		ratio *= float64(pop) / float64(sz)
	}
	return float32(1 - ratio)
}

// EstimatedNNZ returns prod_d(popcount_prefix(sizes[d])), the same
// over-approximating estimate SparsityRatio is derived from.
func (t *Tensor) EstimatedNNZ() int {
	nnz := 1
	for d, sz := range t.Sizes {
		nnz *= t.Sparsities[d].PopcountPrefix(sz)
	}
	return nnz
}

// ChooseModes returns the per-dimension format.Mode this tensor's
// propagated sparsity pattern implies at the given threshold.
func (t *Tensor) ChooseModes(threshold float64) []format.Mode {
	popcounts := make([]int, len(t.Sizes))
	for d, sz := range t.Sizes {
		popcounts[d] = t.Sparsities[d].PopcountPrefix(sz)
	}
	return format.ChooseModes(t.Sizes, popcounts, threshold)
}

// CreateConcrete is a thin pass-through to the external tensor-algebra
// compiler's Factory: it constructs this tensor's ConcreteTensor handle
// with the given mode spec and stores it on Concrete. Sparsity propagation
// never calls this itself; it belongs to the collaborator interface and is
// invoked by the CLI / bench driver once propagation is done.
func (t *Tensor) CreateConcrete(f backend.Factory, modes backend.ModeSpec) error {
	ct, err := f.New(t.Name, t.Sizes, modes)
	if err != nil {
		return spaerr.Wrap(spaerr.ExternalCompilerError, "CreateConcrete "+t.Name, err)
	}
	t.Concrete = ct
	t.Modes = modes
	return nil
}

// formatTag renders this tensor's chosen per-dimension storage modes for
// use in an assembled expression string, e.g. "Dense,Sparse". Returns "?"
// if CreateConcrete has not been called yet.
func (t *Tensor) formatTag() string {
	if len(t.Modes.Modes) == 0 {
		return "?"
	}
	parts := make([]string, len(t.Modes.Modes))
	for i, m := range t.Modes.Modes {
		parts[i] = m.String()
	}
	return strings.Join(parts, ",")
}

// InitializeConcrete inserts data at every coordinate whose per-dimension
// bits are all set, iterating in coordinate-major order (outermost dim
// first), then packs the tensor. value is the placeholder value
// inserted at every such coordinate — SPA never computes numeric values
// itself, so callers that need real data populate it via Concrete.Compute
// after this.
func (t *Tensor) InitializeConcrete(value float64) error {
	if t.Concrete == nil {
		return spaerr.New(spaerr.ExternalCompilerError, "InitializeConcrete called before CreateConcrete for "+t.Name)
	}
	allowed := make([][]int, t.Rank())
	for d, sz := range t.Sizes {
		for i := 0; i < sz; i++ {
			if t.Sparsities[d].Test(i) {
				allowed[d] = append(allowed[d], i)
			}
		}
	}
	coord := make([]int, t.Rank())
	var insertErr error
	var walk func(dim int)
	walk = func(dim int) {
		if insertErr != nil {
			return
		}
		if dim == t.Rank() {
			if err := t.Concrete.Insert(append([]int(nil), coord...), value); err != nil {
				insertErr = err
			}
			return
		}
		for _, i := range allowed[dim] {
			coord[dim] = i
			walk(dim + 1)
			if insertErr != nil {
				return
			}
		}
	}
	walk(0)
	if insertErr != nil {
		return spaerr.Wrap(spaerr.ExternalCompilerError, "InitializeConcrete "+t.Name, insertErr)
	}
	if err := t.Concrete.Pack(); err != nil {
		return spaerr.Wrap(spaerr.ExternalCompilerError, "Pack "+t.Name, err)
	}
	return nil
}
