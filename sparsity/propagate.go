package sparsity

import (
	"github.com/gomlx/spa/bitset"
)

// RunPropagation executes exactly one Forward pass, one Intra pass, and one
// Backward pass, in that order. It requires Finalize to have
// already validated the graph is acyclic; if Finalize was not yet called,
// RunPropagation calls it itself so that a caller who only wants the
// one-shot convenience still gets the CycleDetected check.
//
// Once a graph is valid, propagation itself is infallible: every transfer
// function is a bounded, monotone bitset narrowing.
func (g *Graph) RunPropagation() error {
	if g.forwardOrder == nil {
		if err := g.Finalize(); err != nil {
			return err
		}
	}
	g.RunForward()
	g.runReverse(directionIntra)
	g.runReverse(directionBackward)
	return nil
}

// RunForward executes one Forward pass: inputs to outputs, in the cached
// topological order. Calling it twice in a row is idempotent:
// every transfer only ANDs, and a second pass ANDs with values already
// reflected in the first pass's output.
func (g *Graph) RunForward() {
	for _, opID := range g.forwardOrder {
		op := g.Op(opID)
		switch op.Kind {
		case KindAdd:
			g.forwardAdd(op)
		case KindEinsum:
			g.forwardEinsum(op)
		}
	}
}

func (g *Graph) forwardAdd(op *Op) {
	out := g.Tensor(op.Output)
	for d := range out.Sizes {
		union := bitset.NewAllClear()
		for _, inID := range op.Inputs {
			union = union.Or(g.Tensor(inID).Sparsities[d])
		}
		out.Sparsities[d].AndInPlace(union)
	}
}

func (g *Graph) forwardEinsum(op *Op) {
	out := g.Tensor(op.Output)
	parsed := op.Einsum
	for p := 0; p < len(parsed.Output); p++ {
		c := parsed.Output[p]
		accum := bitset.NewAllSet()
		for _, occ := range parsed.OutputDims[c] {
			in := g.Tensor(op.Inputs[occ.InputIdx])
			accum.AndInPlace(in.Sparsities[occ.InputDim])
		}
		out.Sparsities[p].AndInPlace(accum)
	}
}

type direction int

const (
	directionIntra direction = iota
	directionBackward
)

// RunIntra executes one Intra pass on its own: reverse-topological,
// narrowing an Einsum's inputs against each other across shared reduction
// indices. Exposed separately from RunPropagation so callers (the einsum
// benchmark driver) can time or sequence the three directions
// independently, e.g. to run an extra Forward pass after Backward.
func (g *Graph) RunIntra() {
	g.runReverse(directionIntra)
}

// RunBackward executes one Backward pass on its own: reverse-topological,
// narrowing an Einsum's inputs from its output across output indices.
func (g *Graph) RunBackward() {
	g.runReverse(directionBackward)
}

// runReverse drives the Intra or Backward pass: a work-list walk starting
// at the producers of the designated graph outputs, walking back along
// producer edges. A tensor's producer is enqueued only once every consumer
// of that tensor has been processed (the join-point gate), so an operator
// never runs before all of the information downstream of it has arrived.
func (g *Graph) runReverse(dir direction) {
	pending := make([]int, len(g.tensors))
	for _, t := range g.tensors {
		pending[t.ID] = len(t.Consumers)
	}

	queue := make([]OpID, 0, len(g.ops))
	enqueued := make([]bool, len(g.ops))
	enqueue := func(id OpID) {
		if !enqueued[id] {
			enqueued[id] = true
			queue = append(queue, id)
		}
	}
	for _, outID := range g.outputs {
		t := g.Tensor(outID)
		if pending[t.ID] == 0 && t.Producer != noProducer {
			enqueue(t.Producer)
		}
	}

	for len(queue) > 0 {
		opID := queue[0]
		queue = queue[1:]
		op := g.Op(opID)

		switch dir {
		case directionIntra:
			g.intraTransfer(op)
		case directionBackward:
			g.backwardTransfer(op)
		}

		for _, inID := range op.Inputs {
			pending[inID]--
			if pending[inID] == 0 {
				in := g.Tensor(inID)
				if in.Producer != noProducer {
					enqueue(in.Producer)
				}
				// A tensor with no producer is a graph input: its branch terminates here.
			}
		}
	}
}

// intraTransfer applies the lateral transfer between an Einsum's inputs
// across shared reduction indices. Add has no reduction
// dimensions, so it is a no-op.
func (g *Graph) intraTransfer(op *Op) {
	if op.Kind != KindEinsum {
		return
	}
	for _, occs := range op.Einsum.ReductionDims {
		for _, occ := range occs {
			in := g.Tensor(op.Inputs[occ.InputIdx])
			accum := bitset.NewAllSet()
			for _, other := range occs {
				if other == occ {
					continue
				}
				otherT := g.Tensor(op.Inputs[other.InputIdx])
				accum.AndInPlace(otherT.Sparsities[other.InputDim])
			}
			extra := g.extraInfo(in.ID, occ.InputDim, op.ID)
			in.Sparsities[occ.InputDim].AndInPlace(accum)
			in.Sparsities[occ.InputDim].AndInPlace(extra)
		}
	}
}

// backwardTransfer narrows an Einsum's inputs from its output across output
// indices. Add cannot prove any input slice is zero from its
// output alone, so it is a no-op; inputs shared with other
// operators may still be narrowed by those operators' own backward pass via
// extraInfo.
func (g *Graph) backwardTransfer(op *Op) {
	if op.Kind != KindEinsum {
		return
	}
	out := g.Tensor(op.Output)
	for c, occs := range op.Einsum.OutputDims {
		pos, ok := op.outputCharPos(c)
		if !ok {
			continue
		}
		outBits := out.Sparsities[pos]
		for _, occ := range occs {
			in := g.Tensor(op.Inputs[occ.InputIdx])
			extra := g.extraInfo(in.ID, occ.InputDim, op.ID)
			in.Sparsities[occ.InputDim].AndInPlace(outBits)
			in.Sparsities[occ.InputDim].AndInPlace(extra)
		}
	}
}

// extraInfo computes the multi-op refinement term for input
// tensor tensorID at dimension dim, as seen from every operator consuming
// it *other than* excludeOp. Each other consumer contributes what it
// already knows about that slice's relevance (an AND of its own internal
// constraints); since any single consumer finding the slice relevant is
// enough to keep it, the contributions across consumers are combined with
// OR. With no other consumers, the term defaults to all-ones (the
// OR-across-consumers formulation, chosen over narrowing from only the
// current operator).
func (g *Graph) extraInfo(tensorID TensorID, dim int, excludeOp OpID) bitset.SparsityVector {
	t := g.Tensor(tensorID)
	var result bitset.SparsityVector
	any := false
	for _, consumerID := range t.Consumers {
		if consumerID == excludeOp {
			continue
		}
		consumer := g.Op(consumerID)
		inputIdx, ok := consumer.indexOfInput(tensorID)
		if !ok {
			continue
		}
		var contribution bitset.SparsityVector
		switch consumer.Kind {
		case KindAdd:
			contribution = g.Tensor(consumer.Output).Sparsities[dim]
		case KindEinsum:
			char := consumer.Einsum.Inputs[inputIdx][dim]
			if pos, ok := consumer.outputCharPos(char); ok {
				contribution = g.Tensor(consumer.Output).Sparsities[pos]
			} else {
				contribution = bitset.NewAllSet()
				for _, occ := range consumer.Einsum.ReductionDims[char] {
					if occ.InputIdx == inputIdx && occ.InputDim == dim {
						continue
					}
					otherT := g.Tensor(consumer.Inputs[occ.InputIdx])
					contribution.AndInPlace(otherT.Sparsities[occ.InputDim])
				}
			}
		}
		if !any {
			result = contribution
			any = true
		} else {
			result = result.Or(contribution)
		}
	}
	if !any {
		return bitset.NewAllSet()
	}
	return result
}
