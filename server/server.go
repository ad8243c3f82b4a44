// Package server implements the Hanabi game Server (C2): the
// authoritative rules engine that owns deck/hand/pile/stone state, deals
// hands, dispatches observer callbacks to bots in strict player-index
// order, and applies the four legal mutations. It is grounded directly on
// original_source/csrc/HanabiServer.cc, following the teacher's
// gamemaster/local.go channel-driven dispatch idiom for the turn loop and
// game/state.go's Copy()-for-search pattern for state duplication.
package server

import (
	"math/rand"

	"github.com/rs/zerolog/log"

	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/hanaerr"
	"hanabi/move"
)

// Server is the live game state plus the roster of bots it dispatches
// to. It implements bot.Server.
type Server struct {
	cfg config.Config

	rng *rand.Rand

	players []bot.Bot

	numPlayers int
	piles      [card.NumColors]card.Pile
	hands      [][]card.Card
	deck       []card.Card
	discards   []card.Card

	hintStonesRemaining int
	mulligansRemaining  int
	finalCountdown      int

	activePlayer        int
	observingPlayer      int
	movesFromActivePlayer int

	activeCard           card.Card
	activeCardIsObservable bool
}

// New constructs an unstarted Server for the given configuration. Call
// RunGame to deal and play a full game.
func New(cfg config.Config) *Server {
	return &Server{cfg: cfg, rng: rand.New(rand.NewSource(1))}
}

// Srand seeds the deterministic shuffle RNG, matching Server::srand.
func (s *Server) Srand(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// portableShuffle follows the loop shape of HanabiServer.cc's
// portable_shuffle: for i in [0,n), j = rng.Intn(i+1), swap(i, j) if
// j != i. The random numbers come from Go's math/rand, not from C++'s
// mt19937, so the resulting deck order is a pure, reproducible function
// of the Go seed but is not the order the C++ reference deals for the
// same seed.
func portableShuffle(deck []card.Card, rng *rand.Rand) {
	for i := range deck {
		j := rng.Intn(i + 1)
		if j != i {
			deck[i], deck[j] = deck[j], deck[i]
		}
	}
}

// RunGame deals a fresh deck (or plays the given stacked deck, dealt from
// its first element onward via the C++ reference's reverse-then-pop-back
// protocol)
// to the given bot roster and plays the game to completion, returning the
// final score.
func (s *Server) RunGame(players []bot.Bot, stackedDeck []card.Card) int {
	s.players = players
	s.numPlayers = len(players)

	for c := card.Color(0); c < card.NumColors; c++ {
		s.piles[c] = card.Pile{}
	}
	s.mulligansRemaining = NumMulligans
	s.hintStonesRemaining = NumHints
	s.finalCountdown = 0

	if len(stackedDeck) > 0 {
		s.deck = make([]card.Card, len(stackedDeck))
		for i, c := range stackedDeck {
			s.deck[len(stackedDeck)-1-i] = c
		}
	} else {
		s.deck = s.deck[:0]
		for c := card.Color(0); c < card.NumColors; c++ {
			for v := card.Value(1); v <= card.ValueMax; v++ {
				cc := card.New(c, v)
				for k := 0; k < cc.Count(); k++ {
					s.deck = append(s.deck, cc)
				}
			}
		}
		portableShuffle(s.deck, s.rng)
	}
	s.discards = nil

	handSize := s.HandSize()
	s.hands = make([][]card.Card, s.numPlayers)
	for i := 0; i < s.numPlayers; i++ {
		s.hands[i] = make([]card.Card, 0, handSize)
		for k := 0; k < handSize; k++ {
			s.hands[i] = append(s.hands[i], s.draw())
		}
	}

	s.activeCardIsObservable = false
	s.activePlayer = 0
	s.movesFromActivePlayer = -1

	return s.RunToCompletion()
}

// Constants mirroring HanabiParams in original_source/csrc/Hanabi.h.
const (
	NumHints      = 8
	NumMulligans  = 3
)

// RunToCompletion plays turns until GameOver, dispatching the five-step
// protocol per turn: observeBeforeMove on every bot, the active bot's
// move, observeAfterMove on every bot, then advance the active player and
// the final countdown. Matches Server::runToCompletion exactly.
func (s *Server) RunToCompletion() int {
	for !s.GameOver() {
		log.Debug().
			Int("cardsRemaining", s.CardsRemainingInDeck()).
			Int("finalCountdown", s.finalCountdown).
			Int("mulligansRemaining", s.mulligansRemaining).
			Int("score", s.CurrentScore()).
			Msg("turn start")

		for i := 0; i < s.numPlayers; i++ {
			s.observingPlayer = i
			s.players[i].PleaseObserveBeforeMove(s)
		}
		s.observingPlayer = s.activePlayer
		s.movesFromActivePlayer = 0
		s.players[s.activePlayer].PleaseMakeMove(s)

		if s.GameOver() {
			break
		}
		if s.movesFromActivePlayer == 0 {
			panic(hanaerr.Protocol("Server.RunToCompletion", "bot failed to respond to PleaseMakeMove"))
		}
		s.movesFromActivePlayer = -1

		for i := 0; i < s.numPlayers; i++ {
			s.observingPlayer = i
			s.players[i].PleaseObserveAfterMove(s)
		}
		s.activePlayer = (s.activePlayer + 1) % s.numPlayers
		if len(s.deck) == 0 {
			s.finalCountdown++
		}
	}
	return s.CurrentScore()
}

// EndGameByBombingOut forces game-over by zeroing mulligans remaining.
func (s *Server) EndGameByBombingOut() {
	s.mulligansRemaining = 0
}

// GameOver reports whether the deck is exhausted and every player has
// had one final turn, all mulligans are lost, or every pile is complete.
func (s *Server) GameOver() bool {
	if len(s.deck) == 0 && s.finalCountdown == s.numPlayers+1 {
		return true
	}
	if s.mulligansRemaining == 0 {
		return true
	}
	if s.CurrentScore() == card.ValueMax*card.NumColors {
		return true
	}
	return false
}

// CurrentScore sums the top values of every pile, applying the
// BOMB0/BOMBD scoring rule from config when all mulligans are lost.
func (s *Server) CurrentScore() int {
	if s.mulligansRemaining == 0 && s.cfg.Bomb0 {
		return 0
	}
	sum := 0
	for c := card.Color(0); c < card.NumColors; c++ {
		if !s.piles[c].Empty() {
			sum += s.piles[c].Size()
		}
	}
	if s.mulligansRemaining == 0 {
		sum -= s.cfg.BombD
		if sum < 0 {
			sum = 0
		}
	}
	return sum
}

func (s *Server) NumPlayers() int { return s.numPlayers }

// HandSize returns the effective hand size, honoring HandSizeOverride.
func (s *Server) HandSize() int { return s.cfg.HandSize(s.numPlayers) }

// WhoAmI returns the seat currently being dispatched to as an observer.
func (s *Server) WhoAmI() int { return s.observingPlayer }

func (s *Server) ActivePlayer() int { return s.activePlayer }

func (s *Server) SizeOfHandOfPlayer(player int) int {
	return len(s.hands[player])
}

// HandOfPlayer returns player's hand. It is a protocol violation for a
// bot to observe its own hand.
func (s *Server) HandOfPlayer(player int) []card.Card {
	if player == s.observingPlayer {
		panic(hanaerr.Protocol("Server.HandOfPlayer", "cannot observe own hand"))
	}
	return s.hands[player]
}

// CardIDsOfHandOfPlayer returns placeholder card IDs (always 0), matching
// the C++ reference's non-CARD_ID build.
func (s *Server) CardIDsOfHandOfPlayer(player int) []int {
	ids := make([]int, len(s.hands[player]))
	return ids
}

// ActiveCard returns the card currently being discarded/played. Valid
// only inside the observable window opened by pleaseDiscard/pleasePlay.
func (s *Server) ActiveCard() card.Card {
	if !s.activeCardIsObservable {
		panic(hanaerr.Protocol("Server.ActiveCard", "called ActiveCard from the wrong observer"))
	}
	return s.activeCard
}

func (s *Server) ActiveCardIsObservable() bool { return s.activeCardIsObservable }

func (s *Server) PileOf(color card.Color) card.Pile { return s.piles[color] }

func (s *Server) Discards() []card.Card { return s.discards }

func (s *Server) HintStonesUsed() int { return NumHints - s.hintStonesRemaining }

func (s *Server) HintStonesRemaining() int { return s.hintStonesRemaining }

// DiscardingIsAllowed matches discardingIsAllowed(): discarding is
// disallowed only once every hint stone is available again.
func (s *Server) DiscardingIsAllowed() bool {
	return s.hintStonesRemaining != NumHints
}

func (s *Server) MulligansUsed() int { return NumMulligans - s.mulligansRemaining }

func (s *Server) MulligansRemaining() int { return s.mulligansRemaining }

func (s *Server) CardsRemainingInDeck() int { return len(s.deck) }

func (s *Server) FinalCountdown() int { return s.finalCountdown }

func (s *Server) DistinctColorsInHand(player int) []card.Color {
	seen := map[card.Color]bool{}
	var out []card.Color
	for _, c := range s.hands[player] {
		if !seen[c.Color] {
			seen[c.Color] = true
			out = append(out, c.Color)
		}
	}
	return out
}

func (s *Server) DistinctValuesInHand(player int) []card.Value {
	seen := map[card.Value]bool{}
	var out []card.Value
	for _, c := range s.hands[player] {
		if !seen[c.Value] {
			seen[c.Value] = true
			out = append(out, c.Value)
		}
	}
	return out
}

// PleaseDiscard discards the card at index from the active player's hand,
// notifying every bot's PleaseObserveBeforeDiscard first, matching
// Server::pleaseDiscard.
func (s *Server) PleaseDiscard(index int) {
	if s.movesFromActivePlayer >= 1 {
		panic(hanaerr.Protocol("Server.PleaseDiscard", "bot attempted to move twice"))
	}
	if s.movesFromActivePlayer != 0 {
		panic(hanaerr.Protocol("Server.PleaseDiscard", "called from the wrong observer"))
	}
	if index < 0 || index >= len(s.hands[s.activePlayer]) {
		panic(hanaerr.IllegalMove("Server.PleaseDiscard", "invalid card index %d", index))
	}
	if !s.DiscardingIsAllowed() {
		panic(hanaerr.IllegalMove("Server.PleaseDiscard", "all hint stones are already available"))
	}

	discarded := s.hands[s.activePlayer][index]
	s.activeCard = discarded
	s.activeCardIsObservable = true

	s.movesFromActivePlayer = -1
	old := s.observingPlayer
	for i := 0; i < s.numPlayers; i++ {
		s.observingPlayer = i
		s.players[i].PleaseObserveBeforeDiscard(s, s.activePlayer, index)
	}
	s.observingPlayer = old
	s.activeCardIsObservable = false

	s.discards = append(s.discards, discarded)
	s.hands[s.activePlayer] = removeAt(s.hands[s.activePlayer], index)

	if s.mulligansRemaining > 0 && len(s.deck) > 0 {
		s.hands[s.activePlayer] = append(s.hands[s.activePlayer], s.draw())
	}

	s.regainHintStoneIfPossible()
	s.movesFromActivePlayer = 1
}

// PleasePlay attempts to play the card at index from the active player's
// hand, matching Server::pleasePlay's success/fail/replacement logic.
func (s *Server) PleasePlay(index int) {
	if s.movesFromActivePlayer >= 1 {
		panic(hanaerr.Protocol("Server.PleasePlay", "bot attempted to move twice"))
	}
	if s.movesFromActivePlayer != 0 {
		panic(hanaerr.Protocol("Server.PleasePlay", "called from the wrong observer"))
	}
	if index < 0 || index >= len(s.hands[s.activePlayer]) {
		panic(hanaerr.IllegalMove("Server.PleasePlay", "invalid card index %d", index))
	}

	selected := s.hands[s.activePlayer][index]
	s.activeCard = selected
	s.activeCardIsObservable = true

	s.movesFromActivePlayer = -1
	old := s.observingPlayer
	for i := 0; i < s.numPlayers; i++ {
		s.observingPlayer = i
		s.players[i].PleaseObserveBeforePlay(s, s.activePlayer, index)
	}
	s.observingPlayer = old
	s.activeCardIsObservable = false

	pile := &s.piles[selected.Color]
	if pile.NextValueIs(selected.Value) {
		pile.Increment()
		if selected.Value == card.ValueMax {
			s.regainHintStoneIfPossible()
		}
	} else {
		s.discards = append(s.discards, selected)
		s.loseMulligan()
	}

	s.hands[s.activePlayer] = removeAt(s.hands[s.activePlayer], index)
	if s.mulligansRemaining > 0 && len(s.deck) > 0 {
		s.hands[s.activePlayer] = append(s.hands[s.activePlayer], s.draw())
	}

	s.movesFromActivePlayer = 1
}

// PleaseGiveColorHint gives a color hint to player `to`, matching
// Server::pleaseGiveColorHint, including the empty-hint legality check
// (strict mode: a hint must match at least one card in the target hand).
func (s *Server) PleaseGiveColorHint(to int, color card.Color) {
	s.checkHintPreconditions("Server.PleaseGiveColorHint", to)

	var indices card.CardIndices
	for i, c := range s.hands[to] {
		if c.Color == color {
			indices.Add(i)
		}
	}
	if indices.Empty() {
		// HANABI_ALLOW_EMPTY_HINTS is not defined by default; strict mode
		// rejects hints that touch no card in the target's hand.
		panic(hanaerr.IllegalMove("Server.PleaseGiveColorHint", "hint must include at least one card"))
	}

	s.movesFromActivePlayer = -1
	old := s.observingPlayer
	for i := 0; i < s.numPlayers; i++ {
		s.observingPlayer = i
		s.players[i].PleaseObserveColorHint(s, s.activePlayer, to, color, indices)
	}
	s.observingPlayer = old

	s.hintStonesRemaining--
	s.movesFromActivePlayer = 1
}

// PleaseGiveValueHint gives a value hint to player `to`, matching
// Server::pleaseGiveValueHint.
func (s *Server) PleaseGiveValueHint(to int, value card.Value) {
	s.checkHintPreconditions("Server.PleaseGiveValueHint", to)

	var indices card.CardIndices
	for i, c := range s.hands[to] {
		if c.Value == value {
			indices.Add(i)
		}
	}
	if indices.Empty() {
		panic(hanaerr.IllegalMove("Server.PleaseGiveValueHint", "hint must include at least one card"))
	}

	s.movesFromActivePlayer = -1
	old := s.observingPlayer
	for i := 0; i < s.numPlayers; i++ {
		s.observingPlayer = i
		s.players[i].PleaseObserveValueHint(s, s.activePlayer, to, value, indices)
	}
	s.observingPlayer = old

	s.hintStonesRemaining--
	s.movesFromActivePlayer = 1
}

func (s *Server) checkHintPreconditions(op string, to int) {
	if s.movesFromActivePlayer >= 1 {
		panic(hanaerr.Protocol(op, "bot attempted to move twice"))
	}
	if s.movesFromActivePlayer != 0 {
		panic(hanaerr.Protocol(op, "called from the wrong observer"))
	}
	if to < 0 || to >= s.numPlayers {
		panic(hanaerr.IllegalMove(op, "invalid player index %d", to))
	}
	if s.hintStonesRemaining == 0 {
		panic(hanaerr.IllegalMove(op, "no hint stones remaining"))
	}
	if to == s.activePlayer {
		panic(hanaerr.IllegalMove(op, "cannot give hint to oneself"))
	}
}

func (s *Server) regainHintStoneIfPossible() {
	if s.hintStonesRemaining < NumHints {
		s.hintStonesRemaining++
	}
}

func (s *Server) loseMulligan() {
	s.mulligansRemaining--
}

func (s *Server) draw() card.Card {
	n := len(s.deck)
	c := s.deck[n-1]
	s.deck = s.deck[:n-1]
	return c
}

func removeAt(hand []card.Card, index int) []card.Card {
	out := make([]card.Card, 0, len(hand)-1)
	out = append(out, hand[:index]...)
	out = append(out, hand[index+1:]...)
	return out
}

// CheatGetHand returns player's hand regardless of the observing player,
// for debugging/diagnostics only (matches Server::cheatGetHand).
func (s *Server) CheatGetHand(index int) []card.Card {
	return append([]card.Card(nil), s.hands[index]...)
}

// HandsAsString renders every hand, for debug logging, matching
// Server::handsAsString.
func (s *Server) HandsAsString() string {
	out := ""
	for i := 0; i < s.numPlayers; i++ {
		for j, c := range s.hands[i] {
			if i > 0 || j > 0 {
				out += " "
			}
			out += c.String()
		}
	}
	return out
}

// PilesAsString renders every pile's size, for debug logging, matching
// Server::pilesAsString.
func (s *Server) PilesAsString() string {
	out := ""
	for c := card.Color(0); c < card.NumColors; c++ {
		if c > 0 {
			out += " "
		}
		out += s.piles[c].String(c)
	}
	return out
}

// Enumerate returns every legal move for the active player, adapting
// Server to move.Board.
func (s *Server) Enumerate() []move.Move {
	return move.Enumerate(s)
}

// ConfigOf exposes a Server's configuration, for package simul's
// FromServer constructor.
func ConfigOf(s *Server) config.Config { return s.cfg }

// CloneForSimulation returns a deep copy of real suitable for
// speculative rollouts: every field is duplicated, except the
// observer's own hand and the remaining deck, whose contents are
// replaced (length preserved) by sentinel, matching SimulServer::sync's
// "hidden info filled with junk cards" contract. The returned Server
// shares real's bot roster slice until SetPlayers attaches another one;
// its RNG is freshly seeded from a value drawn from real's RNG.
func CloneForSimulation(real *Server, observer int, sentinel card.Card) *Server {
	clone := &Server{
		cfg:                   real.cfg,
		rng:                   rand.New(rand.NewSource(real.rng.Int63())),
		numPlayers:            real.numPlayers,
		piles:                 real.piles,
		hintStonesRemaining:   real.hintStonesRemaining,
		mulligansRemaining:    real.mulligansRemaining,
		finalCountdown:        real.finalCountdown,
		activePlayer:          real.activePlayer,
		observingPlayer:       observer,
		movesFromActivePlayer: real.movesFromActivePlayer,
		activeCard:            real.activeCard,
		activeCardIsObservable: real.activeCardIsObservable,
		players:               real.players,
	}
	clone.discards = append([]card.Card(nil), real.discards...)
	clone.hands = make([][]card.Card, real.numPlayers)
	for i, h := range real.hands {
		if i == observer {
			sentinelHand := make([]card.Card, len(h))
			for k := range sentinelHand {
				sentinelHand[k] = sentinel
			}
			clone.hands[i] = sentinelHand
		} else {
			clone.hands[i] = append([]card.Card(nil), h...)
		}
	}
	clone.deck = make([]card.Card, len(real.deck))
	for i := range clone.deck {
		clone.deck[i] = sentinel
	}
	return clone
}

// SetHandForSimulation overrides a player's hand in place, used to
// inject a sampled hand hypothesis.
func (s *Server) SetHandForSimulation(index int, hand []card.Card) {
	s.hands[index] = append([]card.Card(nil), hand...)
}

// SetDeckForSimulation overrides the remaining deck in place, used to
// inject a reconstructed, reshuffled deck for a rollout.
func (s *Server) SetDeckForSimulation(deck []card.Card) {
	s.deck = append([]card.Card(nil), deck...)
}

// SetPlayers attaches a bot roster to an already-synced Server, used
// after CloneForSimulation to install the observer's blueprint clone and
// the sampled partner snapshots for a rollout.
func (s *Server) SetPlayers(players []bot.Bot) { s.players = players }

// SetObservingPlayer retargets whoAmI without touching any other state,
// matching SimulServer::setObservingPlayer.
func (s *Server) SetObservingPlayer(observer int) { s.observingPlayer = observer }

// IncrementActivePlayer advances the active player by one seat, wrapping
// modulo numPlayers, matching SimulServer::incrementActivePlayer.
func (s *Server) IncrementActivePlayer() {
	s.activePlayer = (s.activePlayer + 1) % s.numPlayers
}

// AdvanceTurn performs the end-of-turn bookkeeping RunToCompletion's loop
// does after a move and its observeAfterMove pass: advance the active
// player and, if the deck is now empty, tick the final countdown. Used by
// rollouts that apply one move directly via ApplyMove and then resume
// normal play through RunToCompletion.
func (s *Server) AdvanceTurn() {
	s.IncrementActivePlayer()
	if len(s.deck) == 0 {
		s.finalCountdown++
	}
}

// ApplyMove executes an already-chosen move as if the active player's bot
// had called the matching mutator from inside PleaseMakeMove, without
// asking any bot to decide — used by rollouts that already know which
// candidate move they are testing. observingPlayer is set to the active
// player first, since every mutator requires being called from that
// vantage point.
func (s *Server) ApplyMove(m move.Move) {
	s.observingPlayer = s.activePlayer
	s.movesFromActivePlayer = 0
	switch m.Type {
	case move.Play:
		s.PleasePlay(m.Value)
	case move.Discard:
		s.PleaseDiscard(m.Value)
	case move.HintColor:
		s.PleaseGiveColorHint(m.To, card.Color(m.Value))
	case move.HintValue:
		s.PleaseGiveValueHint(m.To, card.Value(m.Value))
	default:
		panic(hanaerr.Protocol("Server.ApplyMove", "invalid move type"))
	}
}

// DispatchObserveAfterMove invokes PleaseObserveAfterMove on every
// player, used by rollouts that apply a move directly via the simul
// wrapper's mock-off mutators and then need to replay the normal
// post-move notification pass.
func (s *Server) DispatchObserveAfterMove() {
	old := s.observingPlayer
	for i := 0; i < s.numPlayers; i++ {
		s.observingPlayer = i
		s.players[i].PleaseObserveAfterMove(s)
	}
	s.observingPlayer = old
}
