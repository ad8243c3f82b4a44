package simul

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/server"
)

type playFirstBot struct{ index int }

func (b *playFirstBot) PleaseObserveBeforeMove(bot.Server)                                  {}
func (b *playFirstBot) PleaseObserveBeforeDiscard(bot.Server, int, int)                     {}
func (b *playFirstBot) PleaseObserveBeforePlay(bot.Server, int, int)                        {}
func (b *playFirstBot) PleaseObserveColorHint(bot.Server, int, int, card.Color, card.CardIndices) {}
func (b *playFirstBot) PleaseObserveValueHint(bot.Server, int, int, card.Value, card.CardIndices) {}
func (b *playFirstBot) PleaseObserveAfterMove(bot.Server)                                   {}
func (b *playFirstBot) PleaseMakeMove(s bot.Server)                                         { s.PleasePlay(0) }
func (b *playFirstBot) Clone() bot.Bot                                                      { return &playFirstBot{index: b.index} }
func (b *playFirstBot) SetPermissive(bool)                                                  {}

func newRealGame() *server.Server {
	real := server.New(config.Default())
	real.Srand(7)
	bots := []bot.Bot{&playFirstBot{0}, &playFirstBot{1}}
	real.RunGame(bots, nil)
	return real
}

func TestSimulatePlayerMoveDoesNotMutateState(t *testing.T) {
	real := newRealGame()
	sim := FromServer(real, 0)
	passBots := []bot.Bot{&playFirstBot{0}, &playFirstBot{1}}
	sim.SetPlayers(passBots)
	sim.SetHand(1, []card.Card{card.New(card.Red, 1), card.New(card.Blue, 2)})

	before := sim.SizeOfHandOfPlayer(1)
	m := sim.SimulatePlayerMove(1, passBots[1])
	require.Equal(t, 0, m.Value)
	require.Equal(t, before, sim.SizeOfHandOfPlayer(1))
}

func TestPleaseDiscardMockedDoesNotPanicOutsideWindow(t *testing.T) {
	real := newRealGame()
	sim := FromServer(real, 0)
	sim.SetHand(0, []card.Card{card.New(card.Red, 1)})
	sim.SetMock(true)
	sim.PleaseDiscard(0)
	require.Equal(t, 0, sim.LastMove().Value)
}
