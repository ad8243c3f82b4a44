package move

import (
	"testing"

	"hanabi/card"

	"github.com/stretchr/testify/require"
)

type fakeBoard struct {
	numPlayers     int
	active         int
	handSizes      []int
	hintStones     int
	discardAllowed bool
	colors         map[int][]card.Color
	values         map[int][]card.Value
}

func (b fakeBoard) NumPlayers() int                   { return b.numPlayers }
func (b fakeBoard) ActivePlayer() int                 { return b.active }
func (b fakeBoard) SizeOfHandOfPlayer(p int) int      { return b.handSizes[p] }
func (b fakeBoard) HintStonesRemaining() int          { return b.hintStones }
func (b fakeBoard) DiscardingIsAllowed() bool         { return b.discardAllowed }
func (b fakeBoard) DistinctColorsInHand(p int) []card.Color { return b.colors[p] }
func (b fakeBoard) DistinctValuesInHand(p int) []card.Value { return b.values[p] }

func TestEnumerateLegalMoves(t *testing.T) {
	b := fakeBoard{
		numPlayers:     2,
		active:         0,
		handSizes:      []int{5, 5},
		hintStones:     8,
		discardAllowed: true,
		colors:         map[int][]card.Color{1: {card.Red, card.Blue}},
		values:         map[int][]card.Value{1: {1, 2}},
	}
	moves := Enumerate(b)
	// 5 plays + 5 discards + 2 color hints + 2 value hints
	require.Len(t, moves, 14)
}

func TestEnumerateNoHintStones(t *testing.T) {
	b := fakeBoard{
		numPlayers:     2,
		active:         0,
		handSizes:      []int{4, 4},
		hintStones:     0,
		discardAllowed: true,
	}
	moves := Enumerate(b)
	require.Len(t, moves, 8)
}

func TestIndexDiscardAndPlay(t *testing.T) {
	require.Equal(t, 2, Index(NewDiscard(2), 0, 2, 5))
	require.Equal(t, 2+5, Index(NewPlay(2), 0, 2, 5))
}

func TestIndexHints(t *testing.T) {
	// 2-player game, me=0, partner to=1, offset=1
	idx := Index(NewHintColor(1, card.Blue), 0, 2, 5)
	require.Equal(t, (1-1)*5+int(card.Blue)+2*5, idx)

	idx = Index(NewHintValue(1, 3), 0, 2, 5)
	require.Equal(t, (1-1)*5+(3-1)+2*5+(2-1)*5, idx)
}

func TestCardIndexRoundTrip(t *testing.T) {
	for color := card.Red; color <= card.Blue; color++ {
		for v := card.Value(1); v <= 5; v++ {
			c := card.New(color, v)
			idx := CardIndex(c)
			require.Equal(t, c, IndexToCard(idx))
		}
	}
}

func TestTargetOffset(t *testing.T) {
	require.Equal(t, 1, TargetOffset(0, 1, 3))
	require.Equal(t, 2, TargetOffset(0, 2, 3))
	require.Equal(t, 1, TargetOffset(2, 0, 3))
}
