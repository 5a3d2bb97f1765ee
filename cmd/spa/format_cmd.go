package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gomlx/spa/backend"
	"github.com/gomlx/spa/format"
	"github.com/gomlx/spa/sparsity"
)

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <rows> <cols> <fmt_out> <fmt_left> <fmt_right> <row_sp_L> <col_sp_L> <row_sp_R> <col_sp_R>",
		Short: "Compare storage formats against the external compiler, independent of any propagation graph",
		Args:  cobra.ExactArgs(9),
		RunE:  runFormat,
	}
}

func runFormat(cmd *cobra.Command, args []string) error {
	rows, err := parseIntArg("rows", args[0])
	if err != nil {
		return err
	}
	cols, err := parseIntArg("cols", args[1])
	if err != nil {
		return err
	}
	tokOut, ok := format.Lookup(args[2])
	if !ok {
		return usageErrorf("unknown format token %q", args[2])
	}
	tokLeft, ok := format.Lookup(args[3])
	if !ok {
		return usageErrorf("unknown format token %q", args[3])
	}
	tokRight, ok := format.Lookup(args[4])
	if !ok {
		return usageErrorf("unknown format token %q", args[4])
	}
	rowSpL, err := parseFloatArg("row_sp_L", args[5])
	if err != nil {
		return err
	}
	colSpL, err := parseFloatArg("col_sp_L", args[6])
	if err != nil {
		return err
	}
	rowSpR, err := parseFloatArg("row_sp_R", args[7])
	if err != nil {
		return err
	}
	colSpR, err := parseFloatArg("col_sp_R", args[8])
	if err != nil {
		return err
	}

	left, err := sparsity.NewTensorFromDensities([]int{rows, cols}, []float64{rowSpL, colSpL}, "L", 1)
	if err != nil {
		return err
	}
	right, err := sparsity.NewTensorFromDensities([]int{rows, cols}, []float64{rowSpR, colSpR}, "R", 2)
	if err != nil {
		return err
	}
	out, err := sparsity.NewEmptyOutput([]int{rows, cols}, "Out")
	if err != nil {
		return err
	}

	factory := backend.GomlxFactory{}
	operands := []struct {
		t   *sparsity.Tensor
		tok format.Token
	}{
		{left, tokLeft},
		{right, tokRight},
		{out, tokOut},
	}
	for _, op := range operands {
		if err := op.t.CreateConcrete(factory, backend.FromToken(op.tok)); err != nil {
			return err
		}
		if err := op.t.InitializeConcrete(1.0); err != nil {
			return err
		}
		size, err := op.t.Concrete.StorageSizeBytes()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: format=%s storage_bytes=%d\n", op.t.Name, op.tok.Name, size)
	}
	return nil
}
