// Package bench parses the three-line benchmark descriptor format and
// builds the left-deep contraction tree it describes over a
// sparsity.Graph.
package bench

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomlx/spa/bitset"
	"github.com/gomlx/spa/sparsity"
	"github.com/pkg/errors"

	"github.com/gomlx/spa/spaerr"
)

// Descriptor is the parsed form of a benchmark file: a contraction path
// over stack indices, one einsum string per path step, and the initial
// leaf tensor sizes.
type Descriptor struct {
	Path    [][2]int
	Einsums []string
	Sizes   [][]int
}

var tupleRe = regexp.MustCompile(`\(([^)]*)\)`)
var quotedRe = regexp.MustCompile(`'([^']*)'`)

// Parse reads the three-line descriptor grammar: line 1 is the contraction
// path, line 2 is the list of einsum strings, line 3 is the initial tensor
// sizes. Interior whitespace is ignored.
func Parse(text string) (*Descriptor, error) {
	lines := nonEmptyLines(text)
	if len(lines) != 3 {
		return nil, spaerr.Newf(spaerr.BenchmarkParseError, "expected 3 lines, got %d", len(lines))
	}

	path, err := parsePairs(lines[0])
	if err != nil {
		return nil, err
	}
	einsums := parseQuoted(lines[1])
	sizes, err := parseTuples(lines[2])
	if err != nil {
		return nil, err
	}

	if len(path) == 0 || len(einsums) == 0 || len(sizes) == 0 {
		return nil, spaerr.New(spaerr.BenchmarkParseError, "benchmark descriptor has an empty section")
	}
	if len(path) != len(einsums) {
		return nil, spaerr.Newf(spaerr.BenchmarkParseError,
			"contraction path has %d steps but %d einsum strings are given", len(path), len(einsums))
	}
	return &Descriptor{Path: path, Einsums: einsums, Sizes: sizes}, nil
}

// ParseFile reads path and parses it as a benchmark descriptor.
func ParseFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, spaerr.Wrap(spaerr.BenchmarkParseError, "reading benchmark file "+path, err)
	}
	return Parse(string(data))
}

func nonEmptyLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func parsePairs(line string) ([][2]int, error) {
	matches := tupleRe.FindAllStringSubmatch(line, -1)
	pairs := make([][2]int, 0, len(matches))
	for _, m := range matches {
		nums, err := parseIntList(m[1])
		if err != nil {
			return nil, errors.Wrap(err, "parsing contraction path")
		}
		if len(nums) != 2 {
			return nil, spaerr.Newf(spaerr.BenchmarkParseError, "contraction path entry %q does not have exactly 2 indices", m[0])
		}
		pairs = append(pairs, [2]int{nums[0], nums[1]})
	}
	return pairs, nil
}

func parseTuples(line string) ([][]int, error) {
	matches := tupleRe.FindAllStringSubmatch(line, -1)
	sizes := make([][]int, 0, len(matches))
	for _, m := range matches {
		nums, err := parseIntList(m[1])
		if err != nil {
			return nil, errors.Wrap(err, "parsing tensor sizes")
		}
		if len(nums) == 0 {
			return nil, spaerr.Newf(spaerr.BenchmarkParseError, "empty size tuple %q", m[0])
		}
		sizes = append(sizes, nums)
	}
	return sizes, nil
}

func parseIntList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, spaerr.Wrap(spaerr.BenchmarkParseError, "non-integer field "+p, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

func parseQuoted(line string) []string {
	matches := quotedRe.FindAllStringSubmatch(line, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// String regenerates the canonical three-line form of d. Parse(d.String())
// reproduces d byte-for-byte (the round-trip law, "modulo
// whitespace" — this always emits the same canonical whitespace).
func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range d.Path {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "(%d,%d)", p[0], p[1])
	}
	b.WriteString("]\n[")
	for i, s := range d.Einsums {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "'%s'", s)
	}
	b.WriteString("]\n[")
	for i, sz := range d.Sizes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j, d := range sz {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", d)
		}
		b.WriteByte(')')
	}
	b.WriteString("]\n")
	return b.String()
}

// BuildTree builds the left-deep contraction tree described by d: a stack
// of tensors initialized from d.Sizes, contracted pairwise according to
// d.Path in order, each step popping its two operands in max-index-first
// order so that the lower index's position is unaffected by the first
// removal. density selects how the leaf tensors' bitsets are
// generated: 1.0 yields all-ones leaves, anything below that calls
// bitset.RandomWithDensity per dimension via sparsity.NewTensorFromDensities.
// The returned TensorID is the single tensor left on the stack once every
// step has been applied.
func BuildTree(d *Descriptor, density float64, seed uint64) (*sparsity.Graph, sparsity.TensorID, error) {
	g := sparsity.NewGraph()
	stack := make([]sparsity.TensorID, 0, len(d.Sizes))
	for i, sz := range d.Sizes {
		leaf, err := newLeaf(sz, density, seed, i)
		if err != nil {
			return nil, 0, err
		}
		id, err := g.AddInputTensor(leaf)
		if err != nil {
			return nil, 0, err
		}
		stack = append(stack, id)
	}

	for step, pair := range d.Path {
		i, j := pair[0], pair[1]
		if i < 0 || j < 0 || i >= len(stack) || j >= len(stack) || i == j {
			return nil, 0, spaerr.Newf(spaerr.BenchmarkParseError,
				"contraction step %d: indices (%d,%d) invalid for a stack of size %d", step, i, j, len(stack))
		}
		hi, lo := i, j
		if lo > hi {
			hi, lo = lo, hi
		}
		// The operand at the higher stack index is popped first and becomes
		// the einsum's first input; the lower-index operand follows as the
		// second. Popping the higher index first leaves the lower index's
		// position unaffected by the first removal.
		in0, in1 := stack[hi], stack[lo]
		stack = append(stack[:hi], stack[hi+1:]...)
		stack = append(stack[:lo], stack[lo+1:]...)

		out, err := sparsity.NewEmptyOutput(nil, fmt.Sprintf("T%d", step))
		if err != nil {
			return nil, 0, err
		}
		if _, err := g.AddEinsum(fmt.Sprintf("step%d", step), d.Einsums[step], []sparsity.TensorID{in0, in1}, out); err != nil {
			return nil, 0, err
		}
		stack = append(stack, out.ID)
	}

	if len(stack) != 1 {
		return nil, 0, spaerr.Newf(spaerr.BenchmarkParseError,
			"contraction path leaves %d tensors on the stack, expected exactly 1", len(stack))
	}
	outID := stack[0]
	if err := g.SetOutputs(outID); err != nil {
		return nil, 0, err
	}
	if err := g.Finalize(); err != nil {
		return nil, 0, err
	}
	return g, outID, nil
}

func newLeaf(sizes []int, density float64, seed uint64, index int) (*sparsity.Tensor, error) {
	name := fmt.Sprintf("leaf%d", index)
	if density >= 1.0 {
		bits := make([]bitset.SparsityVector, len(sizes))
		for k := range bits {
			bits[k] = bitset.NewAllSet()
		}
		return sparsity.NewTensorFromBitsets(sizes, bits, name)
	}
	densities := make([]float64, len(sizes))
	for k := range densities {
		densities[k] = density
	}
	// Each leaf gets a distinct sub-seed so that leaves of the same
	// benchmark don't generate identical bitsets.
	return sparsity.NewTensorFromDensities(sizes, densities, name, seed+uint64(index)*0xD1B54A32D192ED03)
}
