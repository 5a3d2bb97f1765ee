package main

import (
	"fmt"
	"strconv"
)

// usageError marks an argument that failed to parse before any graph or
// file I/O was attempted; main.go maps it to exit code 1, distinct from
// the exit code 2 used for spaerr.Error.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func parseFlag01(name, s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, usageErrorf("%s must be 0 or 1, got %q", name, s)
	}
}

func parseFloatArg(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, usageErrorf("%s must be a number, got %q", name, s)
	}
	return v, nil
}

func parseIntArg(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, usageErrorf("%s must be an integer, got %q", name, s)
	}
	return v, nil
}

func parseSeedArg(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, usageErrorf("seed must be a non-negative integer, got %q", s)
	}
	return v, nil
}
