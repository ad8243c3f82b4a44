package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hanabi/blueprint"
	"hanabi/bot"
	"hanabi/config"
)

func newRegistry() *bot.Registry {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	return reg
}

func TestPlayGameReturnsAScoreWithinBounds(t *testing.T) {
	reg := newRegistry()
	cfg := config.Default()

	result := PlayGame(cfg, reg, []string{"SmartBot", "SmartBot"}, 7, nil)

	require.Equal(t, int64(7), result.Seed)
	require.GreaterOrEqual(t, result.Score, 0)
	require.LessOrEqual(t, result.Score, 25)
}

func TestPlayGamePanicsOnUnknownBot(t *testing.T) {
	reg := newRegistry()
	cfg := config.Default()

	require.Panics(t, func() { PlayGame(cfg, reg, []string{"SmartBot", "NoSuchBot"}, 1, nil) })
}

func TestPlayGamePanicsBelowTwoPlayers(t *testing.T) {
	reg := newRegistry()
	cfg := config.Default()

	require.Panics(t, func() { PlayGame(cfg, reg, []string{"SmartBot"}, 1, nil) })
}

func TestPlaySeedsRunsOneGamePerSeed(t *testing.T) {
	reg := newRegistry()
	cfg := config.Default()

	results := PlaySeeds(cfg, reg, []string{"SmartBot", "SmartBot"}, []int64{1, 2, 3})

	require.Len(t, results, 3)
	for i, seed := range []int64{1, 2, 3} {
		require.Equal(t, seed, results[i].Seed)
	}
}
