// Package bot defines the Bot capability interface (C4) that every
// Hanabi agent — blueprint or search-based — implements, plus a
// constructed (non-global) factory registry used to build bot rosters by
// name. spec.md §9 flags the C++ reference's global BotFactory registry
// as a redesign candidate; this package instead exposes a Registry value
// that callers construct explicitly, following the teacher's preference
// for explicit constructors (NewMCTS, NewUCT, LocalEngine) over
// package-level singletons.
package bot

import (
	"strings"

	"hanabi/card"
)

// Server is the read-only + mutator view a Bot is given during a
// callback, matching original_source/csrc/Hanabi.h's Server surface that
// bots are handed. It is declared here, not in package server, so that
// bot has no import dependency on server — server instead depends on
// bot, avoiding a cycle (server.Server implements this interface).
type Server interface {
	NumPlayers() int
	HandSize() int
	WhoAmI() int
	ActivePlayer() int
	SizeOfHandOfPlayer(player int) int
	HandOfPlayer(player int) []card.Card // must panic/error if player == WhoAmI()
	CardIDsOfHandOfPlayer(player int) []int
	ActiveCard() card.Card // only valid inside the observable window
	ActiveCardIsObservable() bool
	PileOf(color card.Color) card.Pile
	Discards() []card.Card
	HintStonesUsed() int
	HintStonesRemaining() int
	DiscardingIsAllowed() bool
	MulligansUsed() int
	MulligansRemaining() int
	CardsRemainingInDeck() int
	FinalCountdown() int
	GameOver() bool
	CurrentScore() int

	PleaseDiscard(index int)
	PleasePlay(index int)
	PleaseGiveColorHint(player int, color card.Color)
	PleaseGiveValueHint(player int, value card.Value)
}

// Bot is the capability interface every player-controlling agent
// implements: the six observer callbacks (dispatched by the Server in
// strict player-index order around every move) plus the single
// move-making callback, matching Hanabi.h's abstract Bot class.
type Bot interface {
	// PleaseObserveBeforeMove is called on every bot (including the
	// active player's) before the active player is asked to move.
	PleaseObserveBeforeMove(s Server)
	// PleaseObserveBeforeDiscard/Play are called on every bot (including
	// the active player's) with the card about to be discarded/played
	// visible via ActiveCard, before the mutation happens.
	PleaseObserveBeforeDiscard(s Server, from, cardIndex int)
	PleaseObserveBeforePlay(s Server, from, cardIndex int)
	PleaseObserveColorHint(s Server, from, to int, color card.Color, indices card.CardIndices)
	PleaseObserveValueHint(s Server, from, to int, value card.Value, indices card.CardIndices)
	// PleaseObserveAfterMove is called on every bot after the move has
	// been fully applied.
	PleaseObserveAfterMove(s Server)

	// PleaseMakeMove must call exactly one Server mutator.
	PleaseMakeMove(s Server)

	// Clone returns an independent deep copy, required so that rollout
	// workers can fork a bot's belief state without mutating the
	// original (spec.md §5's "Resource discipline").
	Clone() Bot

	// SetPermissive relaxes internal assertions, because search may feed
	// a bot hypothetical states inconsistent with its normal invariants
	// (spec.md §7's permissive-mode downgrade policy).
	SetPermissive(permissive bool)
}

// ActionProbs is an optional capability: a bot that can report, for the
// move it just considered, a distribution over wire-level move indices
// (see package move's Index), used by JointSearchBot's Boltzmann-mode
// belief filtering.
type ActionProbs interface {
	GetActionProbs() map[int]float64
	SetActionUncertainty(uncertainty float64)
}

// Constructor builds a fresh Bot for seat `index` in a `numPlayers`-player
// game with the given hand size.
type Constructor func(index, numPlayers, handSize int) Bot

// Registry maps bot names (as named by the BPBOT configuration option,
// spec.md §6) to constructors. It is a plain value, not a package-level
// global, so callers construct and populate it explicitly.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Re-registering a name overwrites
// the previous entry, matching the C++ reference's last-registration-wins
// behavior for its (discouraged) global registry.
func (r *Registry) Register(name string, ctor Constructor) {
	r.constructors[strings.ToLower(name)] = ctor
}

// Build constructs a bot by name, returning ok=false for an unknown name
// (callers should surface this as a hanaerr.KindConfigurationError-style
// fatal startup error, per spec.md §7's ConfigurationError kind).
func (r *Registry) Build(name string, index, numPlayers, handSize int) (Bot, bool) {
	ctor, ok := r.constructors[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return ctor(index, numPlayers, handSize), true
}

// Names returns every registered bot name, lower-cased as Register
// stores it.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	return names
}
