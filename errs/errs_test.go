package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfold/cta/errs"
)

func TestErrorStringIncludesFields(t *testing.T) {
	err := errs.New("engine", errs.CodeConflict,
		errs.WithStrategy("alpha"),
		errs.WithMessage("strategy already trading"))
	require.Equal(t, `component=engine code=conflict strategy=alpha message="strategy already trading"`, err.Error())
}

func TestErrorDefaultsUnknownFields(t *testing.T) {
	err := errs.New("  ", "")
	require.Equal(t, "component=unknown code=unknown", err.Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := errs.New("store", errs.CodeUnavailable, errs.WithCause(cause))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}

func TestWrappedSentinelMatches(t *testing.T) {
	sentinel := errs.New("engine", errs.CodeNotFound, errs.WithMessage("strategy not found"))
	wrapped := fmt.Errorf("%w: alpha", sentinel)
	require.True(t, errors.Is(wrapped, sentinel))
}

func TestNilOptionIgnored(t *testing.T) {
	err := errs.New("engine", errs.CodeInvalid, nil, errs.WithMessage("bad input"))
	require.Equal(t, errs.CodeInvalid, err.Code)
	require.Equal(t, "bad input", err.Message)
}
