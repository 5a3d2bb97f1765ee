package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gomlx/spa/backend"
	"github.com/gomlx/spa/bench"
	"github.com/gomlx/spa/format"
	"github.com/gomlx/spa/sparsity"
)

func newEinsumCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "einsum <file> <density> <sparse|dense> <run_fw:0|1> <run_lat:0|1> <run_bw:0|1> <seed>",
		Short: "Run propagation passes over a benchmark-tree graph and report sparsity ratios",
		Args:  cobra.ExactArgs(7),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEinsum(cmd, args, logger)
		},
	}
}

func runEinsum(cmd *cobra.Command, args []string, logger *slog.Logger) error {
	file, modeArg := args[0], args[2]

	density, err := parseFloatArg("density", args[1])
	if err != nil {
		return err
	}
	switch modeArg {
	case "dense":
		density = 1.0
	case "sparse":
		// use the given density as-is
	default:
		return usageErrorf(`mode must be "sparse" or "dense", got %q`, modeArg)
	}

	runFw, err := parseFlag01("run_fw", args[3])
	if err != nil {
		return err
	}
	runLat, err := parseFlag01("run_lat", args[4])
	if err != nil {
		return err
	}
	runBw, err := parseFlag01("run_bw", args[5])
	if err != nil {
		return err
	}
	seed, err := parseSeedArg(args[6])
	if err != nil {
		return err
	}
	ctx := sparsity.PropagationContext{Seed: seed}

	desc, err := bench.ParseFile(file)
	if err != nil {
		return err
	}
	g, outID, err := bench.BuildTree(desc, density, ctx.Seed)
	if err != nil {
		return err
	}
	logger.Info("built benchmark tree", "file", file, "tensors", g.NumTensors(), "ops", g.NumOps(), "density", density, "seed", ctx.Seed)

	if runFw {
		g.RunForward()
	}
	if runLat {
		g.RunIntra()
	}
	if runBw {
		g.RunBackward()
	}

	for _, id := range g.TensorIDs() {
		t := g.Tensor(id)
		modes := backend.ModeSpec{Modes: t.ChooseModes(format.DefaultThreshold)}
		if err := t.CreateConcrete(backend.GomlxFactory{}, modes); err != nil {
			return err
		}
		if err := t.InitializeConcrete(1.0); err != nil {
			return err
		}
	}
	if err := g.AssembleExpressions(); err != nil {
		return err
	}
	if err := g.Compile(); err != nil {
		return err
	}

	out := g.Tensor(outID)
	fmt.Fprintf(cmd.OutOrStdout(), "output %q: rank=%d sparsity_ratio=%.4f estimated_nnz=%d\n",
		out.Name, out.Rank(), out.SparsityRatio(), out.EstimatedNNZ())
	return nil
}
