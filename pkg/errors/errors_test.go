package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := stderrors.New("connection refused")
	err := ErrDedupIndexUnavailable.WithInternal(base)

	require.Contains(t, err.Error(), "could not be loaded")
	require.Contains(t, err.Error(), "connection refused")
	require.ErrorIs(t, err, base)
}

func TestSentinelMatchingSurvivesWithInternal(t *testing.T) {
	err := ErrNotFound.WithInternal(stderrors.New("row missing"))
	require.ErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("load prefs: %w", err)
	require.ErrorIs(t, wrapped, ErrNotFound)
	require.NotErrorIs(t, wrapped, ErrDedupIndexUnavailable)
}

func TestWrapKeepsOriginal(t *testing.T) {
	base := stderrors.New("boom")
	err := Wrap(base, "reminder run failed")

	require.Equal(t, "INTERNAL", err.Code)
	require.ErrorIs(t, err, base)
}
