package backend

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// GomlxFactory builds ConcreteTensor instances backed by
// github.com/gomlx/gomlx's tensors.Tensor. It stores every mode densely
// regardless of the requested format.Mode: sparsity propagation's own
// contract never requires the backend to actually save memory,
// only to exist behind the ConcreteTensor interface, so this
// implementation favors simplicity over faithfully reproducing a real
// compressed-sparse kernel compiler.
type GomlxFactory struct{}

var _ Factory = GomlxFactory{}

func (GomlxFactory) New(name string, sizes []int, modes ModeSpec) (ConcreteTensor, error) {
	if len(modes.Modes) != 0 && len(modes.Modes) != len(sizes) {
		exceptions.Panicf("backend.GomlxFactory.New(%q): %d modes given for a rank-%d tensor", name, len(modes.Modes), len(sizes))
	}
	dims := make([]int, len(sizes))
	copy(dims, sizes)
	shape := shapes.Make(dtypes.Float64, dims...)
	return &gomlxTensor{
		name:  name,
		sizes: dims,
		modes: modes,
		t:     tensors.FromShape(shape),
	}, nil
}

// gomlxTensor implements ConcreteTensor over a *tensors.Tensor.
type gomlxTensor struct {
	name     string
	sizes    []int
	modes    ModeSpec
	t        *tensors.Tensor
	packed   bool
	expr     string
	compl    bool
	computed bool
}

func (g *gomlxTensor) Insert(coord []int, value float64) error {
	if g.packed {
		return errors.Errorf("gomlxTensor %q: Insert called after Pack", g.name)
	}
	if len(coord) != len(g.sizes) {
		return errors.Errorf("gomlxTensor %q: coordinate rank %d does not match tensor rank %d", g.name, len(coord), len(g.sizes))
	}
	flatIdx := 0
	for d, c := range coord {
		if c < 0 || c >= g.sizes[d] {
			return errors.Errorf("gomlxTensor %q: coordinate %v out of bounds for sizes %v", g.name, coord, g.sizes)
		}
		flatIdx = flatIdx*g.sizes[d] + c
	}
	var insertErr error
	tensors.MutableFlatData[float64](g.t, func(flat []float64) {
		if flatIdx < 0 || flatIdx >= len(flat) {
			insertErr = errors.Errorf("gomlxTensor %q: computed flat index %d out of range", g.name, flatIdx)
			return
		}
		flat[flatIdx] = value
	})
	return insertErr
}

func (g *gomlxTensor) Pack() error {
	g.packed = true
	return nil
}

func (g *gomlxTensor) Assemble(expr string) error {
	g.expr = expr
	return nil
}

func (g *gomlxTensor) Compile() error {
	if !g.packed {
		return errors.Errorf("gomlxTensor %q: Compile called before Pack", g.name)
	}
	g.compl = true
	return nil
}

func (g *gomlxTensor) Compute() error {
	if !g.compl {
		return errors.Errorf("gomlxTensor %q: Compute called before Compile", g.name)
	}
	g.computed = true
	return nil
}

func (g *gomlxTensor) StorageSizeBytes() (int64, error) {
	if len(g.modes.Modes) == 0 {
		return int64(g.t.Shape().Memory()), nil
	}
	// This backend never actually compresses storage (see type doc), so a
	// requested Sparse mode does not change the byte count here; the modes
	// are recorded on the tensor but do not affect storage.
	bytesPerElem := int64(8)
	size := int64(1)
	for _, sz := range g.sizes {
		size *= int64(sz)
	}
	return size * bytesPerElem, nil
}
