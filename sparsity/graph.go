package sparsity

import (
	"github.com/gomlx/spa/bitset"
	"github.com/gomlx/spa/einsum"
	"github.com/gomlx/spa/spaerr"
)

// Graph owns every Tensor and Op for one analysis; all edges between them
// are non-owning TensorID/OpID handles, never pointers, so the graph is
// trivially serializable and free of reference cycles at the Go level.
type Graph struct {
	tensors []*Tensor
	ops     []*Op
	byName  map[string]TensorID
	outputs []TensorID

	forwardOrder []OpID // populated by Finalize
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]TensorID)}
}

// Tensor returns the tensor with the given handle.
func (g *Graph) Tensor(id TensorID) *Tensor {
	return g.tensors[id]
}

// Op returns the operator with the given handle.
func (g *Graph) Op(id OpID) *Op {
	return g.ops[id]
}

// NumTensors returns the number of tensors owned by the graph.
func (g *Graph) NumTensors() int { return len(g.tensors) }

// TensorIDs returns every tensor handle owned by the graph, in the order
// they were added.
func (g *Graph) TensorIDs() []TensorID {
	ids := make([]TensorID, len(g.tensors))
	for i := range g.tensors {
		ids[i] = TensorID(i)
	}
	return ids
}

// NumOps returns the number of operators owned by the graph.
func (g *Graph) NumOps() int { return len(g.ops) }

// Outputs returns the TensorIDs designated as graph outputs via SetOutputs.
func (g *Graph) Outputs() []TensorID { return g.outputs }

// SetOutputs designates the given tensors as graph outputs: the roots the
// intra/backward passes walk back from. Each must already have a producer.
func (g *Graph) SetOutputs(ids ...TensorID) error {
	for _, id := range ids {
		t := g.Tensor(id)
		if t.Producer == noProducer {
			return spaerr.Newf(spaerr.DimOutOfBounds, "tensor %q designated as output has no producer", t.Name)
		}
		t.IsOutput = true
	}
	g.outputs = append(g.outputs, ids...)
	return nil
}

// AddInputTensor registers a tensor with no producer (a graph input) and
// returns its handle.
func (g *Graph) AddInputTensor(t *Tensor) (TensorID, error) {
	if t.Producer != noProducer {
		return 0, spaerr.Newf(spaerr.DuplicateProducer, "AddInputTensor(%q): tensor already has a producer", t.Name)
	}
	return g.addTensor(t), nil
}

func (g *Graph) addTensor(t *Tensor) TensorID {
	id := TensorID(len(g.tensors))
	t.ID = id
	g.tensors = append(g.tensors, t)
	g.byName[t.Name] = id
	return id
}

func (g *Graph) newOp(name string, kind OpKind, inputs []TensorID) *Op {
	id := OpID(len(g.ops))
	op := &Op{ID: id, Name: name, Kind: kind, Inputs: append([]TensorID(nil), inputs...)}
	g.ops = append(g.ops, op)
	return op
}

// resolveOutput returns the TensorID for an output tensor that may or may
// not already be registered in the graph. If it's new, it is added now; if
// it already has a producer, DuplicateProducer is raised.
func (g *Graph) resolveOutput(out *Tensor) (TensorID, error) {
	if existing, ok := g.byName[out.Name]; ok && g.tensors[existing] == out {
		if out.Producer != noProducer {
			return 0, spaerr.Newf(spaerr.DuplicateProducer, "output tensor %q already has a producer", out.Name)
		}
		return existing, nil
	}
	if out.Producer != noProducer {
		return 0, spaerr.Newf(spaerr.DuplicateProducer, "output tensor %q already has a producer", out.Name)
	}
	return g.addTensor(out), nil
}

// AddAdd registers an n-ary elementwise Add operator: all inputs and the
// output must share the same rank and sizes.
func (g *Graph) AddAdd(name string, inputs []TensorID, output *Tensor) (OpID, error) {
	if len(inputs) == 0 {
		return 0, spaerr.Newf(spaerr.RankMismatch, "Add %q: no inputs given", name)
	}
	rank := g.Tensor(inputs[0]).Rank()
	for _, id := range inputs {
		in := g.Tensor(id)
		if in.Rank() != rank {
			return 0, spaerr.Newf(spaerr.RankMismatch, "Add %q: input %q rank %d != %d", name, in.Name, in.Rank(), rank)
		}
		for d, sz := range in.Sizes {
			if sz != g.Tensor(inputs[0]).Sizes[d] {
				return 0, spaerr.Newf(spaerr.SizeMismatch, "Add %q: input %q size mismatch at dim %d", name, in.Name, d)
			}
		}
	}
	if len(output.Sizes) == 0 {
		output.Sizes = append([]int(nil), g.Tensor(inputs[0]).Sizes...)
		if output.Sparsities == nil {
			sp := make([]bitset.SparsityVector, len(output.Sizes))
			for d := range sp {
				sp[d] = bitset.NewAllSet()
			}
			output.Sparsities = sp
		}
	} else if output.Rank() != rank {
		return 0, spaerr.Newf(spaerr.RankMismatch, "Add %q: output %q rank %d != %d", name, output.Name, output.Rank(), rank)
	} else {
		for d, sz := range output.Sizes {
			if sz != g.Tensor(inputs[0]).Sizes[d] {
				return 0, spaerr.Newf(spaerr.SizeMismatch, "Add %q: output %q size mismatch at dim %d", name, output.Name, d)
			}
		}
	}

	outID, err := g.resolveOutput(output)
	if err != nil {
		return 0, err
	}
	op := g.newOp(name, KindAdd, inputs)
	op.Output = outID
	g.wire(op)
	return op.ID, nil
}

// AddEinsum registers a multilinear contraction operator described by an
// einsum string. If output.Sizes is empty, it is derived from the einsum
// string and the input tensors' sizes; otherwise it must agree with that
// derivation.
func (g *Graph) AddEinsum(name, eq string, inputs []TensorID, output *Tensor) (OpID, error) {
	parsed, err := einsum.Parse(eq)
	if err != nil {
		return 0, err
	}
	if len(parsed.Inputs) != len(inputs) {
		return 0, spaerr.Newf(spaerr.RankMismatch,
			"Einsum %q (%s): einsum string declares %d inputs, got %d tensors", name, eq, len(parsed.Inputs), len(inputs))
	}
	sizes := make([][]int, len(inputs))
	for i, id := range inputs {
		sizes[i] = g.Tensor(id).Sizes
	}
	outSizes, err := parsed.ValidateSizes(sizes)
	if err != nil {
		return 0, err
	}

	if len(output.Sizes) == 0 {
		output.Sizes = outSizes
		if output.Sparsities == nil {
			sp := make([]bitset.SparsityVector, len(output.Sizes))
			for d := range sp {
				sp[d] = bitset.NewAllSet()
			}
			output.Sparsities = sp
		}
	} else {
		if len(output.Sizes) != len(outSizes) {
			return 0, spaerr.Newf(spaerr.RankMismatch,
				"Einsum %q (%s): output %q rank %d != einsum-derived rank %d", name, eq, output.Name, len(output.Sizes), len(outSizes))
		}
		for d := range outSizes {
			if output.Sizes[d] != outSizes[d] {
				return 0, spaerr.Newf(spaerr.SizeMismatch,
					"Einsum %q (%s): output %q size at dim %d is %d, einsum string implies %d",
					name, eq, output.Name, d, output.Sizes[d], outSizes[d])
			}
		}
	}

	outID, err := g.resolveOutput(output)
	if err != nil {
		return 0, err
	}
	op := g.newOp(name, KindEinsum, inputs)
	op.Output = outID
	op.Einsum = parsed
	g.wire(op)
	return op.ID, nil
}

// wire pushes op into each input's Consumers and sets it as its output's
// Producer.
func (g *Graph) wire(op *Op) {
	for _, id := range op.Inputs {
		t := g.Tensor(id)
		t.Consumers = append(t.Consumers, op.ID)
	}
	g.Tensor(op.Output).Producer = op.ID
}

// Finalize computes and caches a deterministic topological order over the
// operators (Kahn's algorithm on the producer/consumer edges). It must be
// called once graph construction is complete and before RunPropagation; it
// is also the point at which CycleDetected is raised, matching the
// "errors raised at graph-construction time" policy.
func (g *Graph) Finalize() error {
	indegree := make([]int, len(g.ops))
	for _, op := range g.ops {
		for _, inID := range op.Inputs {
			if g.Tensor(inID).Producer != noProducer {
				indegree[op.ID]++
			}
		}
	}
	queue := make([]OpID, 0, len(g.ops))
	for _, op := range g.ops {
		if indegree[op.ID] == 0 {
			queue = append(queue, op.ID)
		}
	}
	order := make([]OpID, 0, len(g.ops))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		op := g.Op(id)
		outT := g.Tensor(op.Output)
		for _, consumerID := range outT.Consumers {
			indegree[consumerID]--
			if indegree[consumerID] == 0 {
				queue = append(queue, consumerID)
			}
		}
	}
	if len(order) != len(g.ops) {
		return spaerr.New(spaerr.CycleDetected, "producer/consumer edges contain a cycle")
	}
	g.forwardOrder = order
	return nil
}

// AssembleExpressions walks operators in forward order and, for each one's
// output tensor, attaches the expression computing it (for Einsum, the
// einsum string together with every operand's and the output's chosen
// storage format; for Add, just "+") to its concrete tensor. Every tensor reachable from
// forwardOrder must already have had CreateConcrete called; this is a thin
// delegation to the external compiler, not a sparsity computation.
func (g *Graph) AssembleExpressions() error {
	for _, opID := range g.forwardOrder {
		op := g.Op(opID)
		out := g.Tensor(op.Output)
		if out.Concrete == nil {
			return spaerr.Newf(spaerr.ExternalCompilerError,
				"AssembleExpressions: output %q has no concrete tensor", out.Name)
		}
		if err := out.Concrete.Assemble(op.AssembleExpression(g)); err != nil {
			return spaerr.Wrap(spaerr.ExternalCompilerError, "Assemble "+out.Name, err)
		}
	}
	return nil
}

// Compile drives Compile on every operator's output tensor in forward
// order, lowering each assembled expression into a runnable kernel. Call
// after AssembleExpressions; like it, this is a thin delegation to the
// external compiler.
func (g *Graph) Compile() error {
	for _, opID := range g.forwardOrder {
		out := g.Tensor(g.Op(opID).Output)
		if out.Concrete == nil {
			return spaerr.Newf(spaerr.ExternalCompilerError, "Compile: output %q has no concrete tensor", out.Name)
		}
		if err := out.Concrete.Compile(); err != nil {
			return spaerr.Wrap(spaerr.ExternalCompilerError, "Compile "+out.Name, err)
		}
	}
	return nil
}
