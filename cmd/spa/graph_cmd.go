package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gomlx/spa/backend"
	"github.com/gomlx/spa/builtins"
	"github.com/gomlx/spa/format"
	"github.com/gomlx/spa/sparsity"
)

// materializeConcrete creates and initializes a ConcreteTensor for every
// tensor in g: the designated output tensor gets the caller-chosen format
// token, every other tensor gets the format its own propagated sparsity
// pattern implies at format.DefaultThreshold. This is the prerequisite
// for AssembleExpressions/Compile, which need every operand's concrete
// layout, not just the final output's.
func materializeConcrete(g *sparsity.Graph, outID sparsity.TensorID, tok format.Token) error {
	for _, id := range g.TensorIDs() {
		t := g.Tensor(id)
		modes := backend.ModeSpec{Modes: t.ChooseModes(format.DefaultThreshold)}
		if id == outID {
			modes = backend.FromToken(tok)
		}
		if err := t.CreateConcrete(backend.GomlxFactory{}, modes); err != nil {
			return err
		}
		if err := t.InitializeConcrete(1.0); err != nil {
			return err
		}
	}
	return nil
}

func newGraphCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <name> <row_density> <col_density> <format> <propagate:0|1> <seed>",
		Short: "Build a built-in test graph (bert, deepfm, mem_test, or default) and run it end-to-end",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args, logger)
		},
	}
}

func runGraph(cmd *cobra.Command, args []string, logger *slog.Logger) error {
	name, fmtName := args[0], args[3]

	rowDensity, err := parseFloatArg("row_density", args[1])
	if err != nil {
		return err
	}
	colDensity, err := parseFloatArg("col_density", args[2])
	if err != nil {
		return err
	}
	propagate, err := parseFlag01("propagate", args[4])
	if err != nil {
		return err
	}
	seed, err := parseSeedArg(args[5])
	if err != nil {
		return err
	}
	ctx := sparsity.PropagationContext{Seed: seed}
	tok, ok := format.Lookup(fmtName)
	if !ok {
		return usageErrorf("unknown format token %q", fmtName)
	}

	g, outID, err := builtins.Build(name, rowDensity, colDensity, ctx.Seed)
	if err != nil {
		return err
	}
	logger.Info("built built-in graph", "name", name, "tensors", g.NumTensors(), "ops", g.NumOps())

	if propagate {
		if err := g.RunPropagation(); err != nil {
			return err
		}
	}

	if err := materializeConcrete(g, outID, tok); err != nil {
		return err
	}
	if err := g.AssembleExpressions(); err != nil {
		return err
	}
	if err := g.Compile(); err != nil {
		return err
	}

	out := g.Tensor(outID)
	size, err := out.Concrete.StorageSizeBytes()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "output %q: rank=%d sparsity_ratio=%.4f format=%s storage_bytes=%d\n",
		out.Name, out.Rank(), out.SparsityRatio(), tok.Name, size)
	return nil
}
