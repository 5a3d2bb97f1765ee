package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gomlx/spa/bitset"
	"github.com/gomlx/spa/sparsity"
)

func newProptimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proptime",
		Short: "Time propagation on a single synthetic matmul at MaxSize",
		Args:  cobra.NoArgs,
		RunE:  runProptime,
	}
}

func runProptime(cmd *cobra.Command, args []string) error {
	n := bitset.MaxSize

	x, err := sparsity.NewTensorFromDensities([]int{n, n}, []float64{0.5, 0.5}, "X", 1)
	if err != nil {
		return err
	}
	w, err := sparsity.NewTensorFromDensities([]int{n, n}, []float64{0.5, 0.5}, "W", 2)
	if err != nil {
		return err
	}
	out, err := sparsity.NewEmptyOutput(nil, "Out")
	if err != nil {
		return err
	}

	g := sparsity.NewGraph()
	xID, err := g.AddInputTensor(x)
	if err != nil {
		return err
	}
	wID, err := g.AddInputTensor(w)
	if err != nil {
		return err
	}
	if _, err := g.AddEinsum("matmul", "ik,kj->ij", []sparsity.TensorID{xID, wID}, out); err != nil {
		return err
	}
	if err := g.SetOutputs(out.ID); err != nil {
		return err
	}
	if err := g.Finalize(); err != nil {
		return err
	}

	start := time.Now()
	if err := g.RunPropagation(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Fprintf(cmd.OutOrStdout(), "MaxSize=%d propagation took %s\n", n, elapsed)
	return nil
}
