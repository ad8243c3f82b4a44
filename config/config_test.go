package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpec(t *testing.T) {
	c := Default()
	require.False(t, c.Bomb0)
	require.Equal(t, 1, c.BombD)
	require.Equal(t, 10, c.FiberThreads)
	require.Equal(t, 1000, c.NumThreads)
	require.Equal(t, 10000, c.SearchN)
	require.Equal(t, "SmartBot", c.BPBot)
	require.Equal(t, 2000, c.RangeMax)
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SEARCH_N", "500")
	t.Setenv("UCB", "0")
	t.Setenv("BPBOT", "HolmesBot")
	c := FromEnv()
	require.Equal(t, 500, c.SearchN)
	require.False(t, c.UCB)
	require.Equal(t, "HolmesBot", c.BPBot)
}

func TestFromEnvKeepsDefaultOnUnset(t *testing.T) {
	require.NoError(t, os.Unsetenv("SEARCH_THRESH"))
	c := FromEnv()
	require.InDelta(t, 0.1, c.SearchThresh, 1e-9)
}

func TestResolveSearchPlayerNegativeCountsFromEnd(t *testing.T) {
	require.Equal(t, 1, ResolveSearchPlayer(-1, 2))
	require.Equal(t, 0, ResolveSearchPlayer(0, 2))
}

func TestHandSizeOverride(t *testing.T) {
	c := Default()
	require.Equal(t, 5, c.HandSize(2))
	require.Equal(t, 4, c.HandSize(4))
	c.HandSizeOverride = 3
	require.Equal(t, 3, c.HandSize(4))
}
