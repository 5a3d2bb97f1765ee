package spaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	require.Equal(t, "MalformedEinsum", MalformedEinsum.String())
	require.Equal(t, "CycleDetected", CycleDetected.String())
	require.Equal(t, "Unknown", Kind(999).String())
}

func TestNewError(t *testing.T) {
	err := New(RankMismatch, "input 0 declares rank 2, got rank 3")
	require.Equal(t, RankMismatch, err.Kind)
	require.Equal(t, "RankMismatch: input 0 declares rank 2, got rank 3", err.Error())
}

func TestNewfError(t *testing.T) {
	err := Newf(SizeMismatch, "dim %d: %d != %d", 1, 3, 4)
	require.Equal(t, SizeMismatch, err.Kind)
	require.Equal(t, "SizeMismatch: dim 1: 3 != 4", err.Error())
}

func TestWrapError(t *testing.T) {
	cause := errors.New("backend exploded")
	err := Wrap(ExternalCompilerError, "Compile X", cause)
	require.Equal(t, ExternalCompilerError, err.Kind)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "Compile X")
	require.Contains(t, err.Error(), "backend exploded")
}

func TestErrorsAsRecoversKind(t *testing.T) {
	var raised error = Newf(BitsetOverflow, "dimension size %d exceeds MaxSize", 5000)
	var se *Error
	require.True(t, errors.As(raised, &se))
	require.Equal(t, BitsetOverflow, se.Kind)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 2, ExitCode(New(CycleDetected, "cycle")))
	require.Equal(t, 2, ExitCode(errors.New("anything else raised through this package")))
}
