package belief

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hanabi/card"
	"hanabi/move"
)

func TestCompositionSubtractsDiscardsAndPiles(t *testing.T) {
	var piles [card.NumColors]card.Pile
	piles[card.Red].Increment() // red pile now has the 1
	discards := []card.Card{card.New(card.Blue, 1)}

	comp := Composition(discards, piles)

	require.Equal(t, 2, comp[move.CardIndex(card.New(card.Red, 1))], "one red-1 consumed by the pile")
	require.Equal(t, 2, comp[move.CardIndex(card.New(card.Blue, 1))], "one blue-1 consumed by discard")
	require.Equal(t, 1, comp[move.CardIndex(card.New(card.Red, 5))], "untouched cards keep full multiplicity")
}

func TestCompositionExcludesGivenHands(t *testing.T) {
	var piles [card.NumColors]card.Pile
	hand := []card.Card{card.New(card.Green, 3), card.New(card.Green, 3)}

	comp := Composition(nil, piles, hand)

	require.Equal(t, 0, comp[move.CardIndex(card.New(card.Green, 3))])
}

func TestInitializeProbabilitiesSumToOne(t *testing.T) {
	var comp [25]int
	comp[move.CardIndex(card.New(card.Red, 1))] = 2
	comp[move.CardIndex(card.New(card.Blue, 2))] = 1
	comp[move.CardIndex(card.New(card.Green, 5))] = 1

	d := New(0, 1, 2, 2)
	d.Initialize(4, 100, comp, nil)

	require.Greater(t, d.Size(), 0)
	total := 0.0
	for _, h := range d.Keys() {
		total += d.Prob(h)
	}
	require.InDelta(t, 1.0, total, 1e-9)
}

func TestInitializeEmptyWhenPoolTooSmall(t *testing.T) {
	var comp [25]int
	comp[move.CardIndex(card.New(card.Red, 1))] = 1

	d := New(0, 1, 2, 2)
	d.Initialize(4, 100, comp, nil)

	require.Equal(t, 0, d.Size())
}

func TestUpdateFromHintFiltersConsistentHands(t *testing.T) {
	d := New(0, 1, 2, 2)
	redOne := move.CardIndex(card.New(card.Red, 1))
	blueTwo := move.CardIndex(card.New(card.Blue, 2))
	greenThree := move.CardIndex(card.New(card.Green, 3))

	d.entries = map[string]*DistVal{
		Hand{redOne, blueTwo}.Key():    {Prob: 0.5},
		Hand{blueTwo, redOne}.Key():    {Prob: 0.3},
		Hand{greenThree, blueTwo}.Key(): {Prob: 0.2},
	}

	// Hint: slot 0 is red. Only the first hand has red in slot 0.
	var indices card.CardIndices
	indices.Add(0)
	d.UpdateFromHint(AttrColor, int(card.Red), indices)

	require.Equal(t, 1, d.Size())
	_, ok := d.entries[Hand{redOne, blueTwo}.Key()]
	require.True(t, ok)
}

func TestCDFSampleReturnsConsistentHand(t *testing.T) {
	d := New(0, 1, 2, 2)
	a := move.CardIndex(card.New(card.Red, 1))
	b := move.CardIndex(card.New(card.Blue, 2))
	d.entries = map[string]*DistVal{
		Hand{a, b}.Key(): {Prob: 0.25},
		Hand{b, a}.Key(): {Prob: 0.75},
	}

	cdf := d.ToCDF()
	require.Len(t, cdf.Probs, 2)
	require.InDelta(t, 1.0, cdf.Probs[len(cdf.Probs)-1], 1e-9)

	sampled := cdf.Sample(0.999999)
	require.NotNil(t, sampled)
}

func TestCheckBeliefsPanicsWhenTrueHandMissing(t *testing.T) {
	d := New(0, 1, 2, 2)
	d.entries = map[string]*DistVal{
		Hand{0, 1}.Key(): {Prob: 1.0},
	}

	require.Panics(t, func() {
		d.CheckBeliefs(Hand{2, 3})
	})
	require.NotPanics(t, func() {
		d.CheckBeliefs(Hand{0, 1})
	})
}

func TestReweightPrivateDropsInconsistentHands(t *testing.T) {
	d := New(0, 1, 1, 3)
	a := move.CardIndex(card.New(card.Red, 1))
	b := move.CardIndex(card.New(card.Blue, 2))
	d.entries = map[string]*DistVal{
		Hand{a}.Key(): {Prob: 0.5},
		Hand{b}.Key(): {Prob: 0.5},
	}

	var full [25]int
	full[a] = 1
	full[b] = 1
	// Private composition has card `a` entirely removed (partner holds it).
	private := full
	private[a] = 0

	survivors := d.ReweightPrivate(4, 100, full, private)
	require.Equal(t, 1, survivors)
	_, ok := d.entries[Hand{b}.Key()]
	require.True(t, ok)
}
