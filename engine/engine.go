// Package engine is the thin top-level glue that builds a bot roster by
// name and drives it through server.Server.RunGame: spec.md §1 places a
// CLI/evaluation harness deliberately out of core scope, so this package
// stays a minimal runner (construct, play, log the result), not the
// batched speedup/training experiment harness the teacher built around
// its own game. Grounded on the teacher's engine/local.go Run() loop and
// gamemaster/gamemaster.go's RunGame dispatch, generalized from Risk's
// territory-conquest turn loop to Hanabi's already-self-contained
// server.Server.RunGame.
package engine

import (
	"github.com/rs/zerolog/log"

	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/hanaerr"
	"hanabi/server"
)

// Result is one game's outcome, logged by PlayGame and returned to the
// caller for aggregation across seeds.
type Result struct {
	Seed  int64
	Score int
}

// PlayGame builds one bot per name in botNames (looked up in reg),
// deals and plays a full game with the given seed, and returns the final
// score. stackedDeck, if non-empty, replaces the shuffled deck, matching
// server.Server.RunGame's regression-test hook.
func PlayGame(cfg config.Config, reg *bot.Registry, botNames []string, seed int64, stackedDeck []card.Card) Result {
	if len(botNames) < 2 {
		panic(hanaerr.Internal("engine.PlayGame", "need at least two players, got %d", len(botNames)))
	}

	numPlayers := len(botNames)
	handSize := cfg.HandSize(numPlayers)

	players := make([]bot.Bot, numPlayers)
	for i, name := range botNames {
		b, ok := reg.Build(name, i, numPlayers, handSize)
		if !ok {
			panic(hanaerr.Internal("engine.PlayGame", "unknown bot %q for seat %d", name, i))
		}
		players[i] = b
	}

	real := server.New(cfg)
	real.Srand(seed)
	score := real.RunGame(players, stackedDeck)

	log.Info().
		Int64("seed", seed).
		Int("score", score).
		Strs("bots", botNames).
		Msg("game complete")

	return Result{Seed: seed, Score: score}
}

// PlaySeeds runs PlayGame once per seed, returning one Result per game in
// seed order. Used by a caller wanting a quick multi-seed strength
// estimate without a full statistics package (spec.md's evaluation
// harness is explicitly out of core scope; this is the minimal building
// block such a harness would call).
func PlaySeeds(cfg config.Config, reg *bot.Registry, botNames []string, seeds []int64) []Result {
	results := make([]Result, len(seeds))
	for i, seed := range seeds {
		results[i] = PlayGame(cfg, reg, botNames, seed, nil)
	}
	return results
}
