// Package einsum parses Einstein-summation strings of the form
// "s1,s2,...,sk->t" into their per-input index strings, output index
// string, and the output/reduction dimension maps the sparsity package's
// Einsum operator needs to build its transfer functions.
package einsum

import (
	"strings"

	"github.com/gomlx/spa/spaerr"
)

// Occurrence identifies one (input tensor, dimension) position at which an
// index character appears.
type Occurrence struct {
	InputIdx int
	InputDim int
}

// Parsed is the result of parsing one einsum string.
type Parsed struct {
	// Raw is the original string, kept for diagnostics and round-tripping.
	Raw string
	// Inputs holds the per-dimension index string of each input, in order.
	Inputs []string
	// Output is the output index string t.
	Output string
	// OutputDims maps each character of Output to every (input, dim) it occurs at.
	OutputDims map[byte][]Occurrence
	// ReductionDims maps each character that appears only in inputs to every
	// (input, dim) it occurs at.
	ReductionDims map[byte][]Occurrence
}

// Parse splits an einsum string into inputs/output and builds the
// output-dimension and reduction-dimension maps.
// It does not validate against concrete tensor sizes; call ValidateSizes
// for that once the caller has ranks/sizes available.
func Parse(s string) (*Parsed, error) {
	arrowIdx := strings.Index(s, "->")
	if arrowIdx < 0 {
		return nil, spaerr.Newf(spaerr.MalformedEinsum, "missing '->' in einsum string %q", s)
	}
	lhs := s[:arrowIdx]
	output := s[arrowIdx+2:]
	if lhs == "" {
		return nil, spaerr.Newf(spaerr.MalformedEinsum, "empty input side in einsum string %q", s)
	}

	inputs := strings.Split(lhs, ",")
	for _, in := range inputs {
		if in == "" {
			return nil, spaerr.Newf(spaerr.MalformedEinsum, "empty input index string in einsum string %q", s)
		}
		if err := checkASCIILetters(in, s); err != nil {
			return nil, err
		}
	}
	if err := checkASCIILetters(output, s); err != nil {
		return nil, err
	}

	outputChars := make(map[byte]bool, len(output))
	for i := 0; i < len(output); i++ {
		outputChars[output[i]] = true
	}

	// Output indices must be a subset of the union of input indices.
	inputChars := make(map[byte]bool)
	for _, in := range inputs {
		for i := 0; i < len(in); i++ {
			inputChars[in[i]] = true
		}
	}
	for c := range outputChars {
		if !inputChars[c] {
			return nil, spaerr.Newf(spaerr.MalformedEinsum,
				"output index %q not present in any input in einsum string %q", string(c), s)
		}
	}

	outputDims := make(map[byte][]Occurrence)
	reductionDims := make(map[byte][]Occurrence)
	for inputIdx, in := range inputs {
		for dim := 0; dim < len(in); dim++ {
			c := in[dim]
			occ := Occurrence{InputIdx: inputIdx, InputDim: dim}
			if outputChars[c] {
				outputDims[c] = append(outputDims[c], occ)
			} else {
				reductionDims[c] = append(reductionDims[c], occ)
			}
		}
	}

	return &Parsed{
		Raw:           s,
		Inputs:        inputs,
		Output:        output,
		OutputDims:    outputDims,
		ReductionDims: reductionDims,
	}, nil
}

func checkASCIILetters(s, original string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return spaerr.Newf(spaerr.MalformedEinsum,
				"non-letter index character %q in einsum string %q", string(c), original)
		}
	}
	return nil
}

// ValidateSizes checks that every occurrence of the same index character
// across the inputs agrees on dimension size, and that each input's
// declared rank (length of its index string) matches the corresponding
// sizes slice's length. sizes[i] holds the dimension sizes of input i, in
// order. Output sizes are not checked here; they are derived and returned.
//
// On success it returns the size of each output dimension in the order
// Output is written, derived from whichever input occurrence was found
// first for that character.
func (p *Parsed) ValidateSizes(sizes [][]int) ([]int, error) {
	if len(sizes) != len(p.Inputs) {
		return nil, spaerr.Newf(spaerr.RankMismatch,
			"einsum %q declares %d inputs, got %d tensors", p.Raw, len(p.Inputs), len(sizes))
	}
	for i, in := range p.Inputs {
		if len(in) != len(sizes[i]) {
			return nil, spaerr.Newf(spaerr.RankMismatch,
				"einsum %q input %d declares rank %d, got tensor of rank %d", p.Raw, i, len(in), len(sizes[i]))
		}
	}

	sizeOf := make(map[byte]int)
	for i, in := range p.Inputs {
		for dim := 0; dim < len(in); dim++ {
			c := in[dim]
			sz := sizes[i][dim]
			if existing, ok := sizeOf[c]; ok {
				if existing != sz {
					return nil, spaerr.Newf(spaerr.SizeMismatch,
						"einsum %q: index %q has size %d at input %d dim %d but size %d elsewhere",
						p.Raw, string(c), sz, i, dim, existing)
				}
			} else {
				sizeOf[c] = sz
			}
		}
	}

	outSizes := make([]int, len(p.Output))
	for i := 0; i < len(p.Output); i++ {
		sz, ok := sizeOf[p.Output[i]]
		if !ok {
			return nil, spaerr.Newf(spaerr.MalformedEinsum,
				"einsum %q: output index %q never appears in any input", p.Raw, string(p.Output[i]))
		}
		outSizes[i] = sz
	}
	return outSizes, nil
}

// String re-serializes Parsed back into an einsum string. Parse(p.String())
// is equivalent to p for any Parsed produced by Parse.
func (p *Parsed) String() string {
	return strings.Join(p.Inputs, ",") + "->" + p.Output
}
