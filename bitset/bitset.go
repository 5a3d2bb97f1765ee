// Package bitset implements SparsityVector, the fixed-width bit-vector
// domain that sparsity propagation is computed over.
//
// Bit i of a SparsityVector set to 1 means "slice i along this dimension may
// be nonzero"; 0 means "slice i is guaranteed zero". A freshly constructed
// vector is all-ones (fully dense, the top of the lattice). Propagation only
// ever clears bits.
package bitset

import (
	"math/bits"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// MaxSize is the fixed compile-time width of every SparsityVector, in bits.
// A dimension whose size exceeds MaxSize cannot be represented and must be
// rejected at graph-construction time: fail, never truncate silently.
const MaxSize = 4096

const wordBits = 64
const numWords = MaxSize / wordBits

// SparsityVector is a MaxSize-wide bit vector, stored as a fixed array of
// 64-bit words. A vector representing a dimension of size n < MaxSize
// logically ignores bits [n, MaxSize); PopcountPrefix(n) is the only
// authoritative population count for that dimension.
type SparsityVector struct {
	words [numWords]uint64
}

// ErrOverflow reports a dimension length that exceeds MaxSize.
// RandomWithDensity returns it (wrapped) for such a length; callers such as
// sparsity also check lengths against MaxSize and wrap this.
var ErrOverflow = errors.New("bitset: dimension exceeds MaxSize")

// NewAllSet returns a SparsityVector with every bit in [0, MaxSize) set.
// This is the lattice top and the default state of a newly constructed
// tensor.
func NewAllSet() SparsityVector {
	var v SparsityVector
	for i := range v.words {
		v.words[i] = ^uint64(0)
	}
	return v
}

// NewAllClear returns a SparsityVector with every bit clear.
func NewAllClear() SparsityVector {
	return SparsityVector{}
}

// RandomWithDensity returns a SparsityVector of len bits where exactly
// floor(p*len) bits are cleared at uniformly random positions within
// [0, len); bits in [len, MaxSize) are left set (callers always mask with
// PopcountPrefix(len), so their value is irrelevant, but leaving them set
// keeps the vector consistent with NewAllSet's convention).
//
// RandomWithDensity is deterministic given seed: benchmark reproducibility
// depends on it, so it always derives its generator from
// rand.NewPCG(seed, seed+1), the same construction the originating pack's
// point-cloud tests use for reproducible randomized fixtures.
func RandomWithDensity(p float64, length int, seed uint64) (SparsityVector, error) {
	if length > MaxSize {
		return SparsityVector{}, errors.Wrapf(ErrOverflow, "length %d exceeds MaxSize %d", length, MaxSize)
	}
	if p < 0 || p > 1 {
		return SparsityVector{}, errors.Errorf("density %f out of range [0,1]", p)
	}
	v := NewAllSet()
	numClear := int(p * float64(length))
	if numClear <= 0 {
		return v, nil
	}
	if numClear > length {
		numClear = length
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	// Fisher-Yates partial shuffle over a permutation of [0,length) picks
	// numClear unique positions without rejection sampling.
	perm := make([]int, length)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < numClear; i++ {
		j := i + rng.IntN(length-i)
		perm[i], perm[j] = perm[j], perm[i]
		v.Set(perm[i], false)
	}
	return v, nil
}

// Test reports whether bit i is set. i must be in [0, MaxSize).
func (v *SparsityVector) Test(i int) bool {
	return v.words[i/wordBits]&(1<<uint(i%wordBits)) != 0
}

// Set sets or clears bit i. i must be in [0, MaxSize).
func (v *SparsityVector) Set(i int, value bool) {
	mask := uint64(1) << uint(i%wordBits)
	if value {
		v.words[i/wordBits] |= mask
	} else {
		v.words[i/wordBits] &^= mask
	}
}

// SetAll sets every bit in [0, MaxSize).
func (v *SparsityVector) SetAll() {
	for i := range v.words {
		v.words[i] = ^uint64(0)
	}
}

// And computes the bitwise AND of v and other, returning a new vector.
// AND is the only operation propagation's transfer functions use to narrow
// a bitset, since it can only clear bits relative to either operand.
func (v SparsityVector) And(other SparsityVector) SparsityVector {
	var out SparsityVector
	for i := range v.words {
		out.words[i] = v.words[i] & other.words[i]
	}
	return out
}

// Or computes the bitwise OR of v and other, returning a new vector.
func (v SparsityVector) Or(other SparsityVector) SparsityVector {
	var out SparsityVector
	for i := range v.words {
		out.words[i] = v.words[i] | other.words[i]
	}
	return out
}

// Xor computes the bitwise XOR of v and other, returning a new vector.
func (v SparsityVector) Xor(other SparsityVector) SparsityVector {
	var out SparsityVector
	for i := range v.words {
		out.words[i] = v.words[i] ^ other.words[i]
	}
	return out
}

// AndInPlace narrows v to v AND other, in place. Every propagation transfer
// function in the sparsity package uses this: it is the one operation that
// can only clear bits, never set them, so it is the sole mutator exposed for
// use inside a propagation pass.
func (v *SparsityVector) AndInPlace(other SparsityVector) {
	for i := range v.words {
		v.words[i] &= other.words[i]
	}
}

// PopcountPrefix returns the number of set bits among positions [0, length).
// This is the authoritative population count for a dimension of the given
// length; bits at or beyond length are not counted regardless of their
// value.
func (v SparsityVector) PopcountPrefix(length int) int {
	if length <= 0 {
		return 0
	}
	if length > MaxSize {
		length = MaxSize
	}
	fullWords := length / wordBits
	rem := length % wordBits
	count := 0
	for i := 0; i < fullWords; i++ {
		count += bits.OnesCount64(v.words[i])
	}
	if rem > 0 {
		mask := (uint64(1) << uint(rem)) - 1
		count += bits.OnesCount64(v.words[fullWords] & mask)
	}
	return count
}

// Equal reports whether v and other have identical bit patterns over the
// full MaxSize width.
func (v SparsityVector) Equal(other SparsityVector) bool {
	return v.words == other.words
}
