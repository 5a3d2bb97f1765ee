// Command spa is the reference CLI driver for sparsity propagation
// analysis: it runs benchmark-tree propagation, built-in test graphs, a
// stand-alone storage-format comparison, and a propagation-timing probe.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gomlx/spa/spaerr"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := newRootCmd(logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spa: "+err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the CLI's exit code: 1 for a usage error
// (bad arguments, caught before any graph is touched), 2 for an error
// raised by graph construction, einsum parsing, or benchmark loading.
func exitCodeFor(err error) int {
	var se *spaerr.Error
	if errors.As(err, &se) {
		return spaerr.ExitCode(err)
	}
	return 1
}
