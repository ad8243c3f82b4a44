// Package simul implements SimulServer (C5): a server.Server subtype
// usable for "what would happen if..." rollouts — sync'd from a real
// Server with hidden information replaced by sentinel cards, optionally
// mocked so that mutators only record the attempted move instead of
// applying it. Grounded on original_source/csrc/BotUtils.h's
// SimulServer class.
package simul

import (
	"hanabi/bot"
	"hanabi/card"
	"hanabi/move"
	"hanabi/server"
)

// sentinelCard fills hidden slots (the observer's own hand, the deck)
// after a Sync, matching the C++ reference's use of an arbitrary filler
// card for positions the observer should never read.
var sentinelCard = card.New(card.Red, 1)

// Server wraps server.Server, adding the mock/record mode and the
// observer-retargeting and hidden-information-injection operations
// SimulServer needs.
type Server struct {
	*server.Server

	mock     bool
	lastMove move.Move
	moved    bool
}

// FromServer builds a SimulServer as a deep-enough copy of a real
// Server, with the observer's own hand and the deck replaced by
// sentinel cards, matching SimulServer::sync's "hidden info is filled
// with junk cards" contract.
func FromServer(real *server.Server, observer int) *Server {
	s := &Server{}
	s.Sync(real, observer)
	return s
}

// Sync copies over all observable state from a real Server, replacing
// the observer's own hand and the deck contents with sentinel cards so
// that nothing hidden leaks into the simulation by accident.
func (s *Server) Sync(real *server.Server, observer int) {
	s.Server = server.CloneForSimulation(real, observer, sentinelCard)
}

// Clone returns an independent deep copy of s, suitable for handing to a
// worker goroutine that needs to run its own sequence of
// SetHand/SimulatePlayerMove calls without racing another goroutine's
// simulation on the same underlying state.
func (s *Server) Clone() *Server {
	return &Server{
		Server: server.CloneForSimulation(s.Server, s.Server.WhoAmI(), sentinelCard),
	}
}

// SetHand overrides a player's hand, used to inject a sampled hand
// hypothesis.
func (s *Server) SetHand(index int, hand []card.Card) {
	s.Server.SetHandForSimulation(index, hand)
}

// SetDeck overrides the remaining deck, used to inject a reconstructed,
// reshuffled deck for a rollout.
func (s *Server) SetDeck(deck []card.Card) {
	s.Server.SetDeckForSimulation(deck)
}

// SetMock toggles mock mode: while true, PleaseDiscard/PleasePlay/
// PleaseGiveColorHint/PleaseGiveValueHint only record the move, without
// mutating any state.
func (s *Server) SetMock(mock bool) {
	s.mock = mock
	s.lastMove = move.Move{}
	s.moved = false
}

// LastMove returns the most recently recorded move while in mock mode.
func (s *Server) LastMove() move.Move { return s.lastMove }

// SimulatePlayerMove sets mock mode, retargets the observing player to
// `index`, asks `b` to make a move, and returns what it would have done
// without mutating any state — matching SimulServer::simulatePlayerMove.
func (s *Server) SimulatePlayerMove(index int, b bot.Bot) move.Move {
	s.SetMock(true)
	s.SetObservingPlayer(index)
	b.PleaseMakeMove(s)
	if !s.moved {
		panic("simul: bot failed to respond to PleaseMakeMove in mock mode")
	}
	m := s.lastMove
	s.mock = false
	return m
}

// PleaseDiscard overrides server.Server's mutator: in mock mode it only
// records the move.
func (s *Server) PleaseDiscard(index int) {
	if s.mock {
		s.lastMove = move.NewDiscard(index)
		s.moved = true
		return
	}
	s.Server.PleaseDiscard(index)
}

// PleasePlay overrides server.Server's mutator: in mock mode it only
// records the move.
func (s *Server) PleasePlay(index int) {
	if s.mock {
		s.lastMove = move.NewPlay(index)
		s.moved = true
		return
	}
	s.Server.PleasePlay(index)
}

// PleaseGiveColorHint overrides server.Server's mutator: in mock mode it
// only records the move.
func (s *Server) PleaseGiveColorHint(to int, color card.Color) {
	if s.mock {
		s.lastMove = move.NewHintColor(to, color)
		s.moved = true
		return
	}
	s.Server.PleaseGiveColorHint(to, color)
}

// PleaseGiveValueHint overrides server.Server's mutator: in mock mode it
// only records the move.
func (s *Server) PleaseGiveValueHint(to int, value card.Value) {
	if s.mock {
		s.lastMove = move.NewHintValue(to, value)
		s.moved = true
		return
	}
	s.Server.PleaseGiveValueHint(to, value)
}

// ApplyToAll queues an observation thunk for every hand in handDist
// instead of invoking it immediately; realized lazily by package belief
// when a partner snapshot is actually requested, matching
// SimulServer::applyToAll.
func (s *Server) ApplyToAll(f func(bot.Bot, bot.Server), dist ObservationQueue, me int, updateMe bool) {
	dist.Enqueue(f, me, updateMe, s)
}

// ObservationQueue is the minimal capability SimulServer.ApplyToAll
// needs from a hand distribution, declared here (not imported from
// package belief) to avoid a simul<->belief import cycle; package belief
// implements it.
type ObservationQueue interface {
	Enqueue(f func(bot.Bot, bot.Server), me int, updateMe bool, witness *Server)
}
