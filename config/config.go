// Package config centralizes the engine's environment-variable-driven
// configuration surface (spec.md §6), generalizing the way the teacher's
// meta package centralizes tunables (meta/meta.go) into a loader that
// mirrors original_source/csrc/Hanabi.h's memoized
// Params::getParameterInt/String/Float helpers.
package config

import (
	"os"
	"strconv"
)

// Config holds every recognized option from spec.md's configuration
// table, with its documented default.
type Config struct {
	// Scoring / rules.
	Bomb0 bool // BOMB0: if true, score=0 when all mulligans are lost
	BombD int  // BOMBD: points subtracted when bombed out, if not Bomb0

	// Resource model (C6).
	FiberThreads int // FIBER_THREADS: size of the OS worker pool
	NumThreads   int // NUM_THREADS: max concurrent in-flight fiber tasks

	HandSizeOverride int // HAND_SIZE_OVERRIDE: >=3 overrides standard hand size

	// SearchBot (C9).
	SearchThresh         float64 // SEARCH_THRESH: margin blueprint must be beaten by
	SearchN              int     // SEARCH_N: total rollouts per search pass
	SearchPlayer         int     // SEARCH_PLAYER: which player searches (negative counts from end)
	SearchAll            bool    // SEARCH_ALL: if true, all players search
	DoubleSearch         bool    // DOUBLE_SEARCH: run a second unbiased search
	UCB                  bool    // UCB: enable UCB pruning
	SearchBaseline       bool    // SEARCH_BASELINE: enable paired-blueprint control variate
	OptimizeWins         bool    // OPTIMIZE_WINS: optimize P(score=25) over E[score]
	PartnerUniformUnc    float64 // PARTNER_UNIFORM_UNC: uncertainty floor, 0 = hard prune
	PartnerBoltzmannUnc  float64 // PARTNER_BOLTZMANN_UNC: uniform floor atop Boltzmann prob
	DelayedObsThresh     int     // DELAYED_OBS_THRESH: max distribution size for delayed obs

	// JointSearchBot (C10).
	RangeMax             int // RANGE_MAX: max hand-distribution size before retiring a frame
	JointSearchSeed      int64
	MemoizeRangeSearch   bool

	// Blueprint (C8).
	BPBot string // BPBOT: name of the blueprint bot to use
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		Bomb0:               false,
		BombD:               1,
		FiberThreads:        10,
		NumThreads:          1000,
		HandSizeOverride:    -1,
		SearchThresh:        0.1,
		SearchN:             10000,
		SearchPlayer:        -1,
		SearchAll:           false,
		DoubleSearch:        false,
		UCB:                 true,
		SearchBaseline:      false,
		OptimizeWins:        false,
		PartnerUniformUnc:   0,
		PartnerBoltzmannUnc: 0,
		DelayedObsThresh:    100000,
		RangeMax:            2000,
		JointSearchSeed:     12345,
		MemoizeRangeSearch:  false,
		BPBot:               "SmartBot",
	}
}

// FromEnv loads a Config starting from Default() and overriding each
// field whose environment variable is set, mirroring the C++ reference's
// Params::getParameterInt/String/Float: unset variables, and values that
// do not parse, keep the documented default; nothing is logged.
func FromEnv() Config {
	c := Default()
	c.Bomb0 = envBool("BOMB0", c.Bomb0)
	c.BombD = envInt("BOMBD", c.BombD)
	c.FiberThreads = envInt("FIBER_THREADS", c.FiberThreads)
	c.NumThreads = envInt("NUM_THREADS", c.NumThreads)
	c.HandSizeOverride = envInt("HAND_SIZE_OVERRIDE", c.HandSizeOverride)
	c.SearchThresh = envFloat("SEARCH_THRESH", c.SearchThresh)
	c.SearchN = envInt("SEARCH_N", c.SearchN)
	c.SearchPlayer = envInt("SEARCH_PLAYER", c.SearchPlayer)
	c.SearchAll = envBool("SEARCH_ALL", c.SearchAll)
	c.DoubleSearch = envBool("DOUBLE_SEARCH", c.DoubleSearch)
	c.UCB = envBool("UCB", c.UCB)
	c.SearchBaseline = envBool("SEARCH_BASELINE", c.SearchBaseline)
	c.OptimizeWins = envBool("OPTIMIZE_WINS", c.OptimizeWins)
	c.PartnerUniformUnc = envFloat("PARTNER_UNIFORM_UNC", c.PartnerUniformUnc)
	c.PartnerBoltzmannUnc = envFloat("PARTNER_BOLTZMANN_UNC", c.PartnerBoltzmannUnc)
	c.DelayedObsThresh = envInt("DELAYED_OBS_THRESH", c.DelayedObsThresh)
	c.RangeMax = envInt("RANGE_MAX", c.RangeMax)
	c.JointSearchSeed = envInt64("JOINT_SEARCH_SEED", c.JointSearchSeed)
	c.MemoizeRangeSearch = envBool("MEMOIZE_RANGE_SEARCH", c.MemoizeRangeSearch)
	c.BPBot = envString("BPBOT", c.BPBot)
	return c
}

func envString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(name string, def int64) int64 {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(name string, def float64) float64 {
	if v, ok := os.LookupEnv(name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(name string, def bool) bool {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n != 0
		}
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// ResolveSearchPlayer turns a possibly-negative SearchPlayer index
// (counting from the end, as the C++ reference allows) into an absolute
// seat index in [0, numPlayers).
func ResolveSearchPlayer(searchPlayer, numPlayers int) int {
	if searchPlayer < 0 {
		return numPlayers + searchPlayer
	}
	return searchPlayer
}

// HandSize returns the effective hand size for numPlayers, honoring
// HandSizeOverride when it is set to a sane value (>=3), matching
// HanabiServer.cc's handSize(): 5 cards for <=3 players, 4 for 4-5.
func (c Config) HandSize(numPlayers int) int {
	if c.HandSizeOverride >= 3 {
		return c.HandSizeOverride
	}
	if numPlayers <= 3 {
		return 5
	}
	return 4
}
