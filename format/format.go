// Package format selects a per-dimension storage format (dense vs. sparse)
// from a tensor's propagated sparsity pattern, and names the compound
// formats (CSR, CSC, DCSR, ...) the external tensor-algebra compiler
// understands.
//
// This package never inspects numeric values either: it only consumes the
// popcount of a SparsityVector, the same structural information the
// sparsity package propagates.
package format

// Mode is the per-dimension storage choice handed to the external
// tensor-algebra compiler.
type Mode int

const (
	Dense Mode = iota
	Sparse
)

func (m Mode) String() string {
	if m == Sparse {
		return "Sparse"
	}
	return "Dense"
}

// DefaultThreshold is the zero-fraction threshold ChooseMode compares
// against when no caller-supplied value is given.
const DefaultThreshold = 0.5

// ChooseMode returns Sparse if the fraction of structurally-zero slices
// along a dimension, (size-popcount)/size, exceeds threshold; Dense
// otherwise. size must be > 0.
func ChooseMode(size, popcount int, threshold float64) Mode {
	if size <= 0 {
		return Dense
	}
	zeroFraction := float64(size-popcount) / float64(size)
	if zeroFraction > threshold {
		return Sparse
	}
	return Dense
}

// ChooseModes returns the per-dimension Mode for each dimension, given its
// size and popcount (in matching order).
func ChooseModes(sizes, popcounts []int, threshold float64) []Mode {
	modes := make([]Mode, len(sizes))
	for d := range sizes {
		modes[d] = ChooseMode(sizes[d], popcounts[d], threshold)
	}
	return modes
}

// Token names one of the compound storage formats defined for the
// external compiler, each a pair of per-dimension Modes (row, column) plus
// an optional axis permutation.
type Token struct {
	Name        string
	Modes       [2]Mode
	Permutation []int // nil means identity (row, col)
}

// Named compound formats.
var (
	CSR           = Token{Name: "CSR", Modes: [2]Mode{Dense, Sparse}}
	CSC           = Token{Name: "CSC", Modes: [2]Mode{Dense, Sparse}, Permutation: []int{1, 0}}
	DD            = Token{Name: "DD", Modes: [2]Mode{Dense, Dense}}
	DCSR          = Token{Name: "DCSR", Modes: [2]Mode{Sparse, Sparse}}
	DCSC          = Token{Name: "DCSC", Modes: [2]Mode{Sparse, Sparse}, Permutation: []int{1, 0}}
	SparseDense   = Token{Name: "SparseDense", Modes: [2]Mode{Sparse, Dense}}
	SparseDense10 = Token{Name: "SparseDense10", Modes: [2]Mode{Sparse, Dense}, Permutation: []int{1, 0}}
)

var byName = map[string]Token{
	CSR.Name: CSR, CSC.Name: CSC, DD.Name: DD,
	DCSR.Name: DCSR, DCSC.Name: DCSC,
	SparseDense.Name: SparseDense, SparseDense10.Name: SparseDense10,
}

// Lookup returns the named compound format token, or ok=false if name does
// not match any of the named tokens.
func Lookup(name string) (Token, bool) {
	t, ok := byName[name]
	return t, ok
}
