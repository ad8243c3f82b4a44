package blueprint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hanabi/bot"
	"hanabi/card"
)

// fakeServer is a hand-rolled bot.Server: enough state to drive
// SmartBot's card-knowledge and move-priority logic directly, without
// standing up a full server.Server game. Mutator calls are recorded
// rather than applied, so a test can assert exactly which one fired.
type fakeServer struct {
	numPlayers         int
	hands              map[int][]card.Card
	piles              [card.NumColors]card.Pile
	discards           []card.Card
	hintStonesUsed     int
	mulligansUsed      int
	deckRemaining      int
	activeCard         card.Card
	activeObservable   bool
	activePlayer       int

	discardCalls []int
	playCalls    []int
	colorHints   []colorHintCall
	valueHints   []valueHintCall
}

type colorHintCall struct {
	to    int
	color card.Color
}

type valueHintCall struct {
	to    int
	value card.Value
}

func newFakeServer(numPlayers int) *fakeServer {
	return &fakeServer{
		numPlayers:    numPlayers,
		hands:         make(map[int][]card.Card),
		deckRemaining: 40,
	}
}

func (f *fakeServer) NumPlayers() int                       { return f.numPlayers }
func (f *fakeServer) HandSize() int                          { return len(f.hands[0]) }
func (f *fakeServer) WhoAmI() int                            { return 0 }
func (f *fakeServer) ActivePlayer() int                      { return f.activePlayer }
func (f *fakeServer) SizeOfHandOfPlayer(p int) int            { return len(f.hands[p]) }
func (f *fakeServer) HandOfPlayer(p int) []card.Card          { return f.hands[p] }
func (f *fakeServer) CardIDsOfHandOfPlayer(p int) []int       { return nil }
func (f *fakeServer) ActiveCard() card.Card                   { return f.activeCard }
func (f *fakeServer) ActiveCardIsObservable() bool            { return f.activeObservable }
func (f *fakeServer) PileOf(c card.Color) card.Pile           { return f.piles[c] }
func (f *fakeServer) Discards() []card.Card                   { return f.discards }
func (f *fakeServer) HintStonesUsed() int                     { return f.hintStonesUsed }
func (f *fakeServer) HintStonesRemaining() int                { return 8 - f.hintStonesUsed }
func (f *fakeServer) DiscardingIsAllowed() bool                { return f.hintStonesUsed > 0 }
func (f *fakeServer) MulligansUsed() int                      { return f.mulligansUsed }
func (f *fakeServer) MulligansRemaining() int                  { return 3 - f.mulligansUsed }
func (f *fakeServer) CardsRemainingInDeck() int                { return f.deckRemaining }
func (f *fakeServer) FinalCountdown() int                      { return 0 }
func (f *fakeServer) GameOver() bool                           { return false }
func (f *fakeServer) CurrentScore() int                        { return 0 }

func (f *fakeServer) PleaseDiscard(index int)                          { f.discardCalls = append(f.discardCalls, index) }
func (f *fakeServer) PleasePlay(index int)                             { f.playCalls = append(f.playCalls, index) }
func (f *fakeServer) PleaseGiveColorHint(to int, color card.Color)     { f.colorHints = append(f.colorHints, colorHintCall{to, color}) }
func (f *fakeServer) PleaseGiveValueHint(to int, value card.Value)     { f.valueHints = append(f.valueHints, valueHintCall{to, value}) }

var _ bot.Server = (*fakeServer)(nil)

// --- cardKnowledge.computeIdentity ---

func TestComputeIdentityAmbiguousWithNoConstraints(t *testing.T) {
	k := newCardKnowledge(nil)
	require.False(t, k.known())
	require.Equal(t, -1, k.color)
	require.Equal(t, -1, k.value)
}

func TestComputeIdentityNarrowsAfterMustBeColor(t *testing.T) {
	k := newCardKnowledge(nil)
	k.setMustBeColor(card.Blue)
	require.True(t, k.mustBeColor(card.Blue))
	require.False(t, k.known(), "value is still ambiguous across 1..5")
}

func TestComputeIdentityKnownAfterColorAndValue(t *testing.T) {
	k := newCardKnowledge(nil)
	k.setMustBeColor(card.Green)
	k.setMustBeValue(3)
	require.True(t, k.known())
	require.Equal(t, card.New(card.Green, 3), k.knownCard())
}

func TestComputeIdentitySetMustBeCardIsExact(t *testing.T) {
	k := newCardKnowledge(nil)
	k.setMustBeCard(card.New(card.Orange, 5))
	require.True(t, k.known())
	require.Equal(t, 1, k.possibilities)
	require.Equal(t, card.New(card.Orange, 5), k.knownCard())
}

func TestComputeIdentityCannotBeNarrowsColor(t *testing.T) {
	k := newCardKnowledge(nil)
	for c := card.Color(0); c < card.NumColors; c++ {
		if c != card.Red {
			k.setCannotBeColor(c)
		}
	}
	require.True(t, k.mustBeColor(card.Red))
}

// --- playable / valuable / worthless trivalue logic ---
// All piles start empty (playableValue == 1 for every color), and no
// card has been played yet, matching a fresh game's opening state.

func newOwnerWithFreshPiles(t *testing.T) *SmartBot {
	t.Helper()
	b := New(0, 2, 4)
	b.server = newFakeServer(2)
	return b
}

func TestComputePlayableFreshSlotIsMaybe(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)

	require.Equal(t, maybe, k.playable())
	require.InDelta(t, 5.0/25.0, k.probabilityPlayable(), 1e-9, "only the five 1s are playable out of 25 candidates")
}

func TestComputePlayableKnownValueOneIsYes(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setMustBeValue(1)

	require.Equal(t, yes, k.playable())
	require.InDelta(t, 1.0, k.probabilityPlayable(), 1e-9)
}

func TestComputePlayableKnownValueThreeIsNo(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setMustBeValue(3)

	require.Equal(t, no, k.playable())
	require.InDelta(t, 0.0, k.probabilityPlayable(), 1e-9)
}

func TestComputeValuableFreshSlotOnlyFivesAreValuable(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)

	// At game start every lone-copy 5 is valuable (it is the only copy
	// and nothing below it has been exhausted yet); nothing else is.
	require.Equal(t, maybe, k.valuable())
	require.InDelta(t, 5.0/25.0, k.probabilityValuable(), 1e-9)
}

func TestComputeValuableKnownValueFiveIsYes(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setMustBeValue(5)

	require.Equal(t, yes, k.valuable())
}

func TestComputeValuableKnownValueTwoIsNo(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setMustBeValue(2)

	require.Equal(t, no, k.valuable(), "a 2 has a surviving duplicate at game start, so isn't yet the last copy")
}

func TestComputeWorthlessBecomesYesOnceAPrerequisiteValueIsFullyGone(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	// Both red 2s are gone (discarded or played) while the red pile is
	// still empty: a red 3 can now never be played.
	b.playedCount[card.Red][2] = card.CountOfValue(2)

	k := newCardKnowledge(b)
	k.setMustBeCard(card.New(card.Red, 3))

	require.Equal(t, yes, k.worthless())
	require.False(t, k.owner.isPlayable(card.New(card.Red, 3)))
}

func TestComputeWorthlessFreshCardIsNotWorthless(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setMustBeCard(card.New(card.Blue, 4))

	require.Equal(t, no, k.worthless())
}

func TestSetIsWorthlessClearsPlayableAndValuable(t *testing.T) {
	b := newOwnerWithFreshPiles(t)
	k := newCardKnowledge(b)
	k.setIsWorthless(true)

	require.Equal(t, no, k.playableKnown)
	require.Equal(t, no, k.valuableKnown)
}

// --- priority-ordered maybe* move chain ---

// twoPlayerBot builds a SmartBot seated at 0 in a 2-player game, wired to
// a fakeServer with both hands populated and observed once so
// handKnowledge/playedCount/eyesightCount reflect that server.
func twoPlayerBot(t *testing.T, myHand, partnerHand []card.Card) (*SmartBot, *fakeServer) {
	t.Helper()
	handSize := len(myHand)
	b := New(0, 2, handSize)
	f := newFakeServer(2)
	f.hands[0] = myHand
	f.hands[1] = partnerHand
	b.PleaseObserveBeforeMove(f)
	return b, f
}

func TestMaybeGiveValuableWarningHintsPartnersLastCopy(t *testing.T) {
	// Partner's oldest (slot 0) card is a lone-copy 5: valuable, and
	// otherwise due to be discarded next since nothing else is known
	// worthless. maybeGiveValuableWarning must protect it.
	myHand := []card.Card{card.New(card.Red, 1), card.New(card.Orange, 1)}
	partnerHand := []card.Card{card.New(card.Blue, 5), card.New(card.Green, 2)}
	b, f := twoPlayerBot(t, myHand, partnerHand)

	require.True(t, b.maybeGiveValuableWarning(f))
	require.True(t, len(f.colorHints) == 1 || len(f.valueHints) == 1, "must have hinted the partner")
}

func TestMaybeGiveValuableWarningNoOpWithoutHintStones(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 1)}
	partnerHand := []card.Card{card.New(card.Blue, 5)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	f.hintStonesUsed = 8

	require.False(t, b.maybeGiveValuableWarning(f))
	require.Empty(t, f.colorHints)
	require.Empty(t, f.valueHints)
}

func TestMaybePlayLowestPlayableCardPlaysTheOne(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 3), card.New(card.Blue, 1)}
	partnerHand := []card.Card{card.New(card.Green, 2), card.New(card.Yellow, 3)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	// Reveal my own slot 1 as a known blue 1 (playable), leaving slot 0
	// unknown, exactly as a color+value hint pair would.
	b.handKnowledge[0][1].setMustBeCard(card.New(card.Blue, 1))

	require.True(t, b.maybePlayLowestPlayableCard(f))
	require.Equal(t, []int{1}, f.playCalls)
}

func TestMaybePlayLowestPlayableCardFalseWhenNothingKnownPlayable(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 3), card.New(card.Blue, 4)}
	partnerHand := []card.Card{card.New(card.Green, 2), card.New(card.Yellow, 3)}
	b, f := twoPlayerBot(t, myHand, partnerHand)

	require.False(t, b.maybePlayLowestPlayableCard(f))
	require.Empty(t, f.playCalls)
}

func TestMaybeDiscardWorthlessCardDiscardsKnownWorthless(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 3), card.New(card.Blue, 1)}
	partnerHand := []card.Card{card.New(card.Green, 2), card.New(card.Yellow, 3)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	f.hintStonesUsed = 1 // discarding allowed
	b.playedCount[card.Red][2] = card.CountOfValue(2)
	b.handKnowledge[0][0].setMustBeCard(card.New(card.Red, 3))

	require.True(t, b.maybeDiscardWorthlessCard(f))
	require.Equal(t, []int{0}, f.discardCalls)
}

func TestMaybeDiscardOldCardSkipsKnownValuable(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 5), card.New(card.Blue, 2)}
	partnerHand := []card.Card{card.New(card.Green, 2), card.New(card.Yellow, 3)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	f.hintStonesUsed = 1
	b.handKnowledge[0][0].setMustBeCard(card.New(card.Red, 5))
	b.handKnowledge[0][0].setIsValuable(true)

	require.True(t, b.maybeDiscardOldCard(f))
	require.Equal(t, []int{1}, f.discardCalls, "slot 0 is known valuable, so the oldest discardable card is slot 1")
}

func TestMaybeDiscardOldCardFalseWhenEveryCardLooksValuable(t *testing.T) {
	myHand := []card.Card{card.New(card.Red, 5)}
	partnerHand := []card.Card{card.New(card.Green, 2)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	f.hintStonesUsed = 1
	b.handKnowledge[0][0].setMustBeCard(card.New(card.Red, 5))
	b.handKnowledge[0][0].setIsValuable(true)

	require.Equal(t, -1, b.nextDiscardIndex(0))
	require.False(t, b.maybeDiscardOldCard(f))
}

func TestPleaseMakeMovePrioritizesValuableWarningOverEverythingElse(t *testing.T) {
	// I have a known playable card AND my partner's next discard is
	// their last copy of a card: per SmartBot.cc's declared chain,
	// maybeGiveValuableWarning fires before maybeDiscardFinesse or
	// maybePlayLowestPlayableCard.
	myHand := []card.Card{card.New(card.Blue, 1)}
	partnerHand := []card.Card{card.New(card.Green, 5)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	b.handKnowledge[0][0].setMustBeCard(card.New(card.Blue, 1))

	b.PleaseMakeMove(f)

	require.Empty(t, f.playCalls, "the valuable warning must be given instead of playing")
	require.True(t, len(f.colorHints)+len(f.valueHints) == 1)
}

func TestPleaseMakeMovePlaysWhenNoWarningIsNeeded(t *testing.T) {
	myHand := []card.Card{card.New(card.Blue, 1)}
	partnerHand := []card.Card{card.New(card.Green, 2)}
	b, f := twoPlayerBot(t, myHand, partnerHand)
	b.handKnowledge[0][0].setMustBeCard(card.New(card.Blue, 1))

	b.PleaseMakeMove(f)

	require.Equal(t, []int{0}, f.playCalls)
}

func TestSmartBotCloneIsIndependentOfOriginal(t *testing.T) {
	b := New(0, 2, 4)
	b.playedCount[card.Red][1] = 2

	clone := b.Clone().(*SmartBot)
	clone.playedCount[card.Red][1] = 0

	require.Equal(t, 2, b.playedCount[card.Red][1])
	require.Same(t, clone, clone.handKnowledge[0][0].owner)
}
