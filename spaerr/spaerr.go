// Package spaerr defines the closed set of error kinds the sparsity
// propagation pipeline raises, and the exit-code mapping the CLI applies to
// them.
//
// Every error except ExternalCompilerError is raised at graph-construction
// or benchmark-parse time; ExternalCompilerError is raised while driving the
// external compiler. Once a Graph has been validated, propagation itself is
// infallible.
package spaerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories raised by graph construction,
// einsum parsing, benchmark loading, or the external compiler.
type Kind int

const (
	// MalformedEinsum is a syntactic failure parsing an einsum string.
	MalformedEinsum Kind = iota
	// RankMismatch is an input's declared rank differing from its tensor's actual rank.
	RankMismatch
	// SizeMismatch is two occurrences of the same index character requiring different sizes.
	SizeMismatch
	// DimOutOfBounds is a dimension index outside a tensor's rank.
	DimOutOfBounds
	// DuplicateProducer is an operator whose output tensor already has a producer.
	DuplicateProducer
	// CycleDetected is a cycle found in the producer/consumer edges.
	CycleDetected
	// BenchmarkParseError is a benchmark descriptor file not matching the three-line grammar.
	BenchmarkParseError
	// BitsetOverflow is a requested dimension exceeding the compile-time bitset width.
	BitsetOverflow
	// ExternalCompilerError is an opaque error surfaced verbatim from the tensor-algebra backend.
	ExternalCompilerError
)

func (k Kind) String() string {
	switch k {
	case MalformedEinsum:
		return "MalformedEinsum"
	case RankMismatch:
		return "RankMismatch"
	case SizeMismatch:
		return "SizeMismatch"
	case DimOutOfBounds:
		return "DimOutOfBounds"
	case DuplicateProducer:
		return "DuplicateProducer"
	case CycleDetected:
		return "CycleDetected"
	case BenchmarkParseError:
		return "BenchmarkParseError"
	case BitsetOverflow:
		return "BitsetOverflow"
	case ExternalCompilerError:
		return "ExternalCompilerError"
	default:
		return "Unknown"
	}
}

// Error is the single concrete error type raised across the pipeline. It
// carries a Kind for programmatic dispatch (CLI exit codes, test
// assertions) over a pkg/errors-built message. New and Newf record a stack
// trace; Wrap attaches its message with errors.WithMessage, which records
// none of its own.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.err)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying
// message, and to any cause Wrap attached to it. Error has no Cause method,
// so pkg/errors.Cause stops at the *Error itself.
func (e *Error) Unwrap() error {
	return e.err
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, err: errors.New(msg)}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping cause, attaching msg as
// additional context ahead of it.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, err: errors.WithMessage(cause, msg)}
}

// ExitCode maps an error to the CLI exit code: 0 for a nil error, 2 for any
// non-nil error. It never returns 1; the usage-error exit code 1 is
// assigned by cmd/spa, which calls ExitCode only for *Error values.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 2
}
