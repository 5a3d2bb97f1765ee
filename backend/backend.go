// Package backend defines the contract sparsity propagation consumes from
// the external tensor-algebra compiler: a way to construct a
// concrete tensor with a chosen per-dimension storage format, insert
// structurally-nonzero coordinates into it, and hand it off for
// compilation/execution. Everything behind this contract is opaque to the
// sparsity package — it never inspects a ConcreteTensor's contents.
package backend

import (
	"github.com/gomlx/spa/format"
)

// ModeSpec is the per-dimension format a concrete tensor is constructed
// with: one format.Mode per dimension, plus an optional axis permutation
// (nil means identity order).
type ModeSpec struct {
	Modes       []format.Mode
	Permutation []int
}

// FromToken builds a ModeSpec from a named compound format token
// (CSR/CSC/DD/...).
func FromToken(tok format.Token) ModeSpec {
	return ModeSpec{Modes: []format.Mode{tok.Modes[0], tok.Modes[1]}, Permutation: tok.Permutation}
}

// ConcreteTensor is the opaque handle a Tensor node owns once a storage
// format has been chosen. Its methods are thin pass-throughs to whatever
// external tensor-algebra compiler is wired in; sparsity propagation never
// calls any of them itself.
type ConcreteTensor interface {
	// Insert records that the given coordinate holds value; coord must
	// have len(coord) == rank and must lie within the tensor's declared
	// sizes. Implementations may reject a coordinate whose per-dimension
	// bit was already known to be zero.
	Insert(coord []int, value float64) error

	// Pack finalizes the tensor's storage layout after all Insert calls.
	Pack() error

	// Compile lowers the assembled expression (if any) that produces this
	// tensor into a runnable kernel.
	Compile() error

	// Assemble attaches the expression (einsum string + operand formats)
	// that computes this tensor, as produced by the sparsity package's
	// Op.AssembleExpression.
	Assemble(expr string) error

	// Compute executes the compiled kernel, populating this tensor's data.
	Compute() error

	// StorageSizeBytes estimates the bytes used to store this tensor given
	// its chosen format.
	StorageSizeBytes() (int64, error)
}

// Factory constructs a ConcreteTensor for a named tensor of the given sizes
// and mode spec. Any external tensor-algebra compiler providing this
// suffices; this package also provides a gomlx-backed
// implementation in gomlx.go.
type Factory interface {
	New(name string, sizes []int, modes ModeSpec) (ConcreteTensor, error)
}
