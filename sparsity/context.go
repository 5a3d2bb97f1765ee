package sparsity

// PropagationContext carries the one piece of process-wide configuration
// sparsity propagation depends on: the RNG seed controlling randomized bit
// generation. It is a field of an explicit struct rather than a global
// variable — the CLI constructs one once, before any benchmark or built-in
// graph is built, and threads its Seed field down to the tensor
// constructors that need it.
type PropagationContext struct {
	Seed uint64
}
