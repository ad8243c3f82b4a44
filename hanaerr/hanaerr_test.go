package hanaerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsDiscriminatesKind(t *testing.T) {
	err := IllegalMove("Server.pleaseGiveColorHint", "no hint stones remaining")
	require.True(t, Is(err, KindIllegalMove))
	require.False(t, Is(err, KindProtocol))
}

func TestWrappedErrorStillDiscriminates(t *testing.T) {
	base := Protocol("Server.handOfPlayer", "player may not observe own hand")
	wrapped := fmt.Errorf("dispatch failed: %w", base)
	require.True(t, Is(wrapped, KindProtocol))
}

func TestErrorMessageIncludesKindAndOp(t *testing.T) {
	err := Internal("belief.Sample", "cdf did not sum to 1: got %f", 0.5)
	require.Contains(t, err.Error(), "internal")
	require.Contains(t, err.Error(), "belief.Sample")
}
