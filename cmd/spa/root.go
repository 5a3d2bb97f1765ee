package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// newRootCmd assembles the four subcommands under one root. Exit codes are
// 0 on success, 1 on usage error, 2 on parse/structural error; each
// subcommand just returns an error from RunE and main.go does the
// translation. logger is passed down explicitly to the subcommands that
// report structured run info, rather than installed as a package-level
// default.
func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "spa",
		Short:         "Sparsity propagation analysis over einsum computation graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newEinsumCmd(logger),
		newGraphCmd(logger),
		newFormatCmd(),
		newProptimeCmd(),
	)
	return root
}
