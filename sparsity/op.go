package sparsity

import (
	"strings"

	"github.com/gomlx/spa/einsum"
)

// OpKind is the closed set of operator variants. Dispatch on
// Kind is done with an explicit switch rather than virtual dispatch: the
// number of variants is small and fixed by design.
type OpKind int

const (
	KindAdd OpKind = iota
	KindEinsum
)

func (k OpKind) String() string {
	if k == KindEinsum {
		return "Einsum"
	}
	return "Add"
}

// Op is one operator node: an n-ary elementwise Add, or a multilinear
// Einsum contraction. Which fields are meaningful depends on Kind; Einsum
// is nil for KindAdd.
type Op struct {
	ID     OpID
	Name   string
	Kind   OpKind
	Inputs []TensorID
	Output TensorID

	// Einsum holds the parsed index-string structure for KindEinsum
	// operators. Its Occurrence.InputIdx values index into Inputs.
	Einsum *einsum.Parsed
}

// indexOfInput returns the position of tensorID within op.Inputs, or
// ok=false if it is not one of this operator's inputs.
func (op *Op) indexOfInput(tensorID TensorID) (int, bool) {
	for i, id := range op.Inputs {
		if id == tensorID {
			return i, true
		}
	}
	return 0, false
}

// outputCharPos returns the position of character c within op.Einsum.Output,
// or ok=false if c is not an output character of this operator.
func (op *Op) outputCharPos(c byte) (int, bool) {
	for p := 0; p < len(op.Einsum.Output); p++ {
		if op.Einsum.Output[p] == c {
			return p, true
		}
	}
	return 0, false
}

// AssembleExpression builds the expression string the external compiler's
// ConcreteTensor.Assemble expects for this operator's output: the einsum
// string together with every operand's chosen storage format and the
// output's, so the compiler can pick a kernel matching the concrete layout
// on both sides. An n-ary Add has no einsum string to assemble; its
// expression is just the "+" it computes.
func (op *Op) AssembleExpression(g *Graph) string {
	if op.Kind != KindEinsum {
		return "+"
	}
	parts := make([]string, 0, len(op.Inputs)+2)
	parts = append(parts, op.Einsum.String())
	for _, id := range op.Inputs {
		parts = append(parts, g.Tensor(id).formatTag())
	}
	parts = append(parts, g.Tensor(op.Output).formatTag())
	return strings.Join(parts, " @ ")
}
