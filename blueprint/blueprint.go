// Package blueprint implements SmartBot (C8): the rule-based "blueprint"
// bot that SearchBot and JointSearchBot bias their UCB priors toward and
// fall back to for partner simulation. Grounded in full on
// original_source/csrc/SmartBot.h/.cc: the CardKnowledge possibility
// grid, the Hint scorer, and the priority-ordered maybe* move chain.
package blueprint

import (
	"github.com/rs/zerolog/log"

	"hanabi/bot"
	"hanabi/card"
)

// trivalue mirrors SmartBotInternal::trivalue.
type trivalue int8

const (
	no trivalue = iota
	maybe
	yes
)

// cardKnowledge is one hand slot's possibility grid over the 25 (color,
// value) pairs, plus cached derived facts, matching
// SmartBotInternal::CardKnowledge. Colors are indexed 0..4
// (card.Red..card.Blue); values are indexed 1..5 (index 0 unused).
type cardKnowledge struct {
	owner *SmartBot

	cantBe [card.NumColors][6]bool

	possibilities int // -1 = uncached
	color         int // -2 = uncached, -1 = ambiguous, else a card.Color
	value         int // -2 = uncached, -1 = ambiguous, else 1..5

	playableKnown  trivalue
	valuableKnown  trivalue
	worthlessKnown trivalue

	probPlayable  float64 // -1 = uncached
	probValuable  float64
	probWorthless float64
}

func newCardKnowledge(owner *SmartBot) cardKnowledge {
	return cardKnowledge{
		owner:          owner,
		possibilities:  -1,
		color:          -2,
		value:          -2,
		playableKnown:  maybe,
		valuableKnown:  maybe,
		worthlessKnown: maybe,
		probPlayable:   -1,
		probValuable:   -1,
		probWorthless:  -1,
	}
}

func (k *cardKnowledge) transfer(owner *SmartBot) cardKnowledge {
	clone := *k
	clone.owner = owner
	return clone
}

func (k *cardKnowledge) mustBeColor(c card.Color) bool {
	k.computeIdentity()
	return k.color == int(c)
}

func (k *cardKnowledge) mustBeValue(v card.Value) bool {
	k.computeIdentity()
	return k.value == int(v)
}

func (k *cardKnowledge) cannotBeCard(c card.Card) bool {
	return k.cantBe[c.Color][c.Value]
}

func (k *cardKnowledge) cannotBeColor(c card.Color) bool {
	if k.color >= 0 {
		return k.color != int(c)
	}
	for v := card.Value(1); v <= 5; v++ {
		if !k.cantBe[c][v] {
			return false
		}
	}
	return true
}

func (k *cardKnowledge) cannotBeValue(v card.Value) bool {
	if k.value >= 0 {
		return k.value != int(v)
	}
	for c := card.Color(0); c < card.NumColors; c++ {
		if !k.cantBe[c][v] {
			return false
		}
	}
	return true
}

// befuddleByDiscard re-opens valuable/worthless once a discard happens,
// since the set of still-needed cards just changed.
func (k *cardKnowledge) befuddleByDiscard() {
	if k.worthlessKnown != yes {
		k.valuableKnown = maybe
		k.probValuable = -1
		k.worthlessKnown = maybe
		k.probWorthless = -1
	}
}

// befuddleByPlay re-opens playable (on success) or valuable (on failure).
func (k *cardKnowledge) befuddleByPlay(success bool) {
	if success {
		k.playableKnown = maybe
		k.probPlayable = -1
	} else {
		k.valuableKnown = maybe
		k.probValuable = -1
	}
	if k.worthlessKnown != yes {
		k.worthlessKnown = maybe
		k.probWorthless = -1
	}
}

func (k *cardKnowledge) resetDerived() {
	if k.playableKnown == maybe {
		k.probPlayable = -1
	}
	if k.valuableKnown == maybe {
		k.probValuable = -1
	}
	if k.worthlessKnown == maybe {
		k.probWorthless = -1
	}
}

func (k *cardKnowledge) setMustBeColor(color card.Color) {
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if c != color {
				k.cantBe[c][v] = true
			}
		}
	}
	k.possibilities = -1
	k.color = int(color)
	if k.value == -1 {
		k.value = -2
	}
	k.resetDerived()
}

func (k *cardKnowledge) setMustBeValue(value card.Value) {
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if v != value {
				k.cantBe[c][v] = true
			}
		}
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	k.value = int(value)
	k.resetDerived()
}

func (k *cardKnowledge) setMustBeCard(c card.Card) {
	for color := card.Color(0); color < card.NumColors; color++ {
		for v := card.Value(1); v <= 5; v++ {
			k.cantBe[color][v] = !(color == c.Color && v == c.Value)
		}
	}
	k.possibilities = 1
	k.color = int(c.Color)
	k.value = int(c.Value)
	k.resetDerived()
}

func (k *cardKnowledge) setCannotBeColor(color card.Color) {
	for v := card.Value(1); v <= 5; v++ {
		k.cantBe[color][v] = true
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	if k.value == -1 {
		k.value = -2
	}
	k.resetDerived()
}

func (k *cardKnowledge) setCannotBeValue(value card.Value) {
	for c := card.Color(0); c < card.NumColors; c++ {
		k.cantBe[c][value] = true
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	if k.value == -1 {
		k.value = -2
	}
	k.resetDerived()
}

func (k *cardKnowledge) setIsPlayable(knownPlayable bool) {
	for c := card.Color(0); c < card.NumColors; c++ {
		playableValue := k.owner.server.PileOf(c).Size() + 1
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			if (int(v) == playableValue) != knownPlayable {
				k.cantBe[c][v] = true
			}
		}
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	if k.value == -1 {
		k.value = -2
	}
	k.playableKnown = boolToTri(knownPlayable)
	k.probPlayable = triProb(knownPlayable)
	if k.valuableKnown == maybe {
		k.probValuable = -1
	}
	if k.worthlessKnown == maybe {
		k.probWorthless = -1
	}
	if knownPlayable {
		k.worthlessKnown = no
		k.probWorthless = 0
	}
}

func (k *cardKnowledge) setIsValuable(knownValuable bool) {
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			if k.owner.isValuable(card.New(c, v)) != knownValuable {
				k.cantBe[c][v] = true
			}
		}
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	if k.value == -1 {
		k.value = -2
	}
	if k.playableKnown == maybe {
		k.probPlayable = -1
	}
	k.valuableKnown = boolToTri(knownValuable)
	k.probValuable = triProb(knownValuable)
	if k.worthlessKnown == maybe {
		k.probWorthless = -1
	}
	if knownValuable {
		k.worthlessKnown = no
		k.probWorthless = 0
	}
}

func (k *cardKnowledge) setIsWorthless(knownWorthless bool) {
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			if k.owner.isWorthless(card.New(c, v)) != knownWorthless {
				k.cantBe[c][v] = true
			}
		}
	}
	k.possibilities = -1
	if k.color == -1 {
		k.color = -2
	}
	if k.value == -1 {
		k.value = -2
	}
	if k.playableKnown == maybe {
		k.probPlayable = -1
	}
	if k.valuableKnown == maybe {
		k.probValuable = -1
	}
	k.worthlessKnown = boolToTri(knownWorthless)
	k.probWorthless = triProb(knownWorthless)
	if knownWorthless {
		k.playableKnown = no
		k.valuableKnown = no
		k.probPlayable = 0
		k.probValuable = 0
	}
}

func boolToTri(b bool) trivalue {
	if b {
		return yes
	}
	return no
}

func triProb(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (k *cardKnowledge) computeIdentity() {
	if k.color != -2 && k.value != -2 {
		return
	}
	color, value := -2, -2
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			if color == -2 || color == int(c) {
				color = int(c)
			} else {
				color = -1
			}
			if value == -2 || value == int(v) {
				value = int(v)
			} else {
				value = -1
			}
		}
	}
	if color == -2 {
		color = -1
	}
	if value == -2 {
		value = -1
	}
	k.color = color
	k.value = value
}

func (k *cardKnowledge) computePossibilities() {
	if k.possibilities != -1 {
		return
	}
	n := 0
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if !k.cantBe[c][v] {
				n++
			}
		}
	}
	if n < 1 {
		k.possibilities = 10 // confused (permissive mode)
		return
	}
	k.possibilities = n
}

func (k *cardKnowledge) known() bool {
	k.computeIdentity()
	return k.color != -1 && k.value != -1
}

// identityValue lazily computes and returns the determined value (1..5),
// or -1 if ambiguous, matching CardKnowledge::value().
func (k *cardKnowledge) identityValue() int {
	k.computeIdentity()
	return k.value
}

func (k *cardKnowledge) knownCard() card.Card {
	return card.New(card.Color(k.color), card.Value(k.value))
}

func (k *cardKnowledge) computePlayable() {
	if k.probPlayable != -1 {
		return
	}
	total, yesCount := 0, 0
	for c := card.Color(0); c < card.NumColors; c++ {
		playableValue := k.owner.server.PileOf(c).Size() + 1
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			total++
			if int(v) == playableValue {
				yesCount++
			}
		}
	}
	if total < 1 {
		k.probPlayable = 0.5
		k.playableKnown = maybe
		return
	}
	k.probPlayable = float64(yesCount) / float64(total)
	k.playableKnown = triFromCounts(yesCount, total)
}

func (k *cardKnowledge) computeValuable() {
	if k.probValuable != -1 {
		return
	}
	total, yesCount := 0, 0
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			total++
			if k.owner.isValuable(card.New(c, v)) {
				yesCount++
			}
		}
	}
	if total < 1 {
		k.probValuable = 0.5
		k.valuableKnown = maybe
		return
	}
	k.probValuable = float64(yesCount) / float64(total)
	k.valuableKnown = triFromCounts(yesCount, total)
}

func (k *cardKnowledge) computeWorthless() {
	if k.probWorthless != -1 {
		return
	}
	total, yesCount := 0, 0
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			total++
			if k.owner.isWorthless(card.New(c, v)) {
				yesCount++
			}
		}
	}
	if total < 1 {
		k.probWorthless = 0.5
		k.worthlessKnown = maybe
		return
	}
	k.probWorthless = float64(yesCount) / float64(total)
	k.worthlessKnown = triFromCounts(yesCount, total)
}

func triFromCounts(yesCount, total int) trivalue {
	switch {
	case yesCount == total:
		return yes
	case yesCount != 0:
		return maybe
	default:
		return no
	}
}

func (k *cardKnowledge) playable() trivalue  { k.computePlayable(); return k.playableKnown }
func (k *cardKnowledge) valuable() trivalue  { k.computeValuable(); return k.valuableKnown }
func (k *cardKnowledge) worthless() trivalue { k.computeWorthless(); return k.worthlessKnown }

func (k *cardKnowledge) probabilityPlayable() float64  { k.computePlayable(); return k.probPlayable }
func (k *cardKnowledge) probabilityValuable() float64  { k.computeValuable(); return k.probValuable }
func (k *cardKnowledge) probabilityWorthless() float64 { k.computeWorthless(); return k.probWorthless }

// couldBePlayableWithValue reports whether, were this slot revealed to
// hold `value`, it could still be playable.
func (k *cardKnowledge) couldBePlayableWithValue(value int) bool {
	if value < 1 || value > 5 || k.cannotBeValue(card.Value(value)) {
		return false
	}
	if k.playable() != maybe {
		return false
	}
	clone := *k
	clone.setMustBeValue(card.Value(value))
	return clone.playable() != no
}

func (k *cardKnowledge) couldBeValuableWithValue(value int) bool {
	if value < 1 || value > 5 || k.cannotBeValue(card.Value(value)) {
		return false
	}
	if k.valuable() != maybe {
		return false
	}
	clone := *k
	clone.setMustBeValue(card.Value(value))
	return clone.valuable() != no
}

// update rules out any possibility already fully accounted for by
// played + (my-eyesight-or-located) cards. useMyEyesight picks between
// the strict "what everyone has located" table and "what I personally
// can see" table, matching CardKnowledge::update<useMyEyesight>.
func (k *cardKnowledge) update(useMyEyesight bool) {
	if k.known() {
		return
	}
	recompute := false
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := card.Value(1); v <= 5; v++ {
			if k.cantBe[c][v] {
				continue
			}
			total := card.CountOfValue(v)
			played := k.owner.playedCount[c][v]
			var held int
			if useMyEyesight {
				held = k.owner.eyesightCount[c][v]
			} else {
				held = k.owner.locatedCount[c][v]
			}
			if played+held >= total {
				k.cantBe[c][v] = true
				recompute = true
			}
		}
	}
	if recompute {
		k.possibilities = -1
		k.color = -2
		k.value = -2
		k.playableKnown, k.valuableKnown, k.worthlessKnown = maybe, maybe, maybe
		k.probPlayable, k.probValuable, k.probWorthless = -1, -1, -1
	}
}

// hint is one candidate hint action plus its scored fitness, matching
// SmartBotInternal::Hint.
type hint struct {
	fitness int
	to      int
	color   int // -1 if this is a value hint
	value   int // -1 if this is a color hint
}

func newHint() hint { return hint{fitness: -1, color: -1, value: -1, to: -1} }

func (h hint) includes(c card.Card) bool {
	if h.color != -1 {
		return h.color == int(c.Color)
	}
	return h.value == int(c.Value)
}

func (h hint) give(s bot.Server) {
	if h.color != -1 {
		s.PleaseGiveColorHint(h.to, card.Color(h.color))
	} else {
		s.PleaseGiveValueHint(h.to, card.Value(h.value))
	}
}

// SmartBot is the rule-based blueprint bot (C8), implementing bot.Bot.
type SmartBot struct {
	server      bot.Server
	me          int
	myHandSize  int
	handSize    int // nominal hand size at construction (for Clone)
	numPlayers  int
	permissive  bool

	handKnowledge [][]cardKnowledge
	playedCount   [card.NumColors][6]int
	locatedCount  [card.NumColors][6]int
	eyesightCount [card.NumColors][6]int
}

// New constructs a fresh SmartBot for seat index in a numPlayers-player
// game with the given starting hand size, matching SmartBot::SmartBot.
func New(index, numPlayers, handSize int) *SmartBot {
	b := &SmartBot{me: index, numPlayers: numPlayers, handSize: handSize}
	b.handKnowledge = make([][]cardKnowledge, numPlayers)
	for p := 0; p < numPlayers; p++ {
		b.handKnowledge[p] = make([]cardKnowledge, handSize)
		for i := range b.handKnowledge[p] {
			b.handKnowledge[p][i] = newCardKnowledge(b)
		}
	}
	return b
}

// Register adds "smartbot" to a bot.Registry.
func Register(reg *bot.Registry) {
	reg.Register("smartbot", func(index, numPlayers, handSize int) bot.Bot {
		return New(index, numPlayers, handSize)
	})
}

func (b *SmartBot) SetPermissive(p bool) { b.permissive = p }

func (b *SmartBot) isPlayable(c card.Card) bool {
	playableValue := b.server.PileOf(c.Color).Size() + 1
	return int(c.Value) == playableValue
}

func (b *SmartBot) isValuable(c card.Card) bool {
	if b.playedCount[c.Color][c.Value] != c.Count()-1 {
		return false
	}
	return !b.isWorthless(c)
}

func (b *SmartBot) isWorthless(c card.Card) bool {
	playableValue := b.server.PileOf(c.Color).Size() + 1
	if int(c.Value) < playableValue {
		return true
	}
	v := c.Value
	for int(v) > playableValue {
		v--
		if b.playedCount[c.Color][v] == card.CountOfValue(v) {
			return true
		}
	}
	return false
}

func (b *SmartBot) invalidateKnol(playerIndex, cardIndex int, drawNewCard bool) {
	vec := b.handKnowledge[playerIndex]
	for i := cardIndex; i+1 < len(vec); i++ {
		vec[i] = vec[i+1]
	}
	if drawNewCard {
		vec[len(vec)-1] = newCardKnowledge(b)
	} else {
		b.handKnowledge[playerIndex] = vec[:len(vec)-1]
	}
}

func (b *SmartBot) seePublicCard(c card.Card) {
	b.playedCount[c.Color][c.Value]++
}

func (b *SmartBot) updateEyesightCount() {
	for c := card.Color(0); c < card.NumColors; c++ {
		for v := 0; v < 6; v++ {
			b.eyesightCount[c][v] = 0
		}
	}
	for p := 0; p < b.numPlayers; p++ {
		if p == b.me {
			for i := 0; i < b.myHandSize; i++ {
				k := &b.handKnowledge[p][i]
				if k.known() {
					b.eyesightCount[card.Color(k.color)][k.value]++
				}
			}
		} else {
			for _, c := range b.server.HandOfPlayer(p) {
				b.eyesightCount[c.Color][c.Value]++
			}
		}
	}
}

// updateLocatedCount recomputes what is known across every hand,
// returning whether anything changed (so pleaseObserveBeforeMove can
// iterate update<false> to a fixed point).
func (b *SmartBot) updateLocatedCount() bool {
	var newCount [card.NumColors][6]int
	for p := 0; p < len(b.handKnowledge); p++ {
		for i := range b.handKnowledge[p] {
			k := &b.handKnowledge[p][i]
			if k.known() {
				newCount[card.Color(k.color)][k.value]++
			}
		}
	}
	if newCount != b.locatedCount {
		b.locatedCount = newCount
		return true
	}
	return false
}

// nextDiscardIndex returns -1 if `to` should play rather than discard,
// or should already have discarded; otherwise the index of their
// not-known-valuable card most likely to be worthless (the oldest such
// card on ties), matching SmartBot::nextDiscardIndex.
func (b *SmartBot) nextDiscardIndex(to int) int {
	bestFitness := 0.0
	bestIndex := -1
	for i, k := range b.handKnowledge[to] {
		if k.playable() == yes {
			return -1
		}
		if k.worthless() == yes {
			return -1
		}
		if k.valuable() == yes {
			continue
		}
		fitness := 100 + k.probabilityWorthless()
		if fitness > bestFitness {
			bestFitness = fitness
			bestIndex = i
		}
	}
	return bestIndex
}

// noValuableWarningWasGiven records that the player expecting a warning
// from `from` now knows their next-discard candidate isn't valuable,
// unless the deck or hint stones are already exhausted.
func (b *SmartBot) noValuableWarningWasGiven(from int) {
	if b.server.CardsRemainingInDeck() == 0 {
		return
	}
	if b.server.HintStonesRemaining() == 0 {
		return
	}
	playerExpectingWarning := (from + 1) % len(b.handKnowledge)
	discardIndex := b.nextDiscardIndex(playerExpectingWarning)
	if discardIndex != -1 {
		b.handKnowledge[playerExpectingWarning][discardIndex].setIsValuable(false)
	}
}

func (b *SmartBot) PleaseObserveBeforeMove(s bot.Server) {
	b.server = s
	b.myHandSize = s.SizeOfHandOfPlayer(b.me)

	b.locatedCount = [card.NumColors][6]int{}
	b.updateLocatedCount()
	for {
		for p := 0; p < len(b.handKnowledge); p++ {
			for i := range b.handKnowledge[p] {
				b.handKnowledge[p][i].update(false)
			}
		}
		if !b.updateLocatedCount() {
			break
		}
	}
	b.updateEyesightCount()
}

func (b *SmartBot) PleaseObserveBeforeDiscard(s bot.Server, from, cardIndex int) {
	b.server = s
	c := s.ActiveCard()

	b.noValuableWarningWasGiven(from)

	knol := b.handKnowledge[from][cardIndex]
	if knol.known() && knol.playable() == yes {
		seenIt := false
		for partner := 0; partner < b.numPlayers; partner++ {
			if partner == from || partner == b.me {
				continue
			}
			hand := s.HandOfPlayer(partner)
			if len(hand) == 0 {
				continue
			}
			newest := hand[len(hand)-1]
			if newest == c {
				last := &b.handKnowledge[partner][len(b.handKnowledge[partner])-1]
				last.setMustBeColor(c.Color)
				last.setMustBeValue(c.Value)
				seenIt = true
				break
			}
		}
		if !seenIt {
			last := &b.handKnowledge[b.me][len(b.handKnowledge[b.me])-1]
			last.setMustBeColor(c.Color)
			last.setMustBeValue(c.Value)
		}
	}

	for _, hand := range b.handKnowledge {
		for i := range hand {
			hand[i].befuddleByDiscard()
		}
	}

	b.seePublicCard(c)
	b.invalidateKnol(from, cardIndex, s.CardsRemainingInDeck() != 0)
}

func (b *SmartBot) PleaseObserveBeforePlay(s bot.Server, from, cardIndex int) {
	b.server = s
	c := s.ActiveCard()
	success := b.isPlayable(c)

	b.noValuableWarningWasGiven(from)

	for _, hand := range b.handKnowledge {
		for i := range hand {
			hand[i].befuddleByPlay(success)
		}
	}

	b.seePublicCard(c)
	b.invalidateKnol(from, cardIndex, s.CardsRemainingInDeck() != 0)
}

func (b *SmartBot) PleaseObserveColorHint(s bot.Server, from, to int, color card.Color, indices card.CardIndices) {
	b.server = s

	numCards := s.SizeOfHandOfPlayer(to)
	identifiedPlayable := false
	inferredPlayableIndex := -1
	for i := numCards - 1; i >= 0; i-- {
		k := &b.handKnowledge[to][i]
		wasMaybePlayable := k.playable() == maybe
		if indices.Contains(i) {
			k.setMustBeColor(color)
			if wasMaybePlayable {
				if k.playable() == yes {
					identifiedPlayable = true
				} else if k.playable() == maybe && inferredPlayableIndex == -1 {
					inferredPlayableIndex = i
				}
			}
		} else {
			k.setCannotBeColor(color)
			if wasMaybePlayable && k.playable() == yes {
				identifiedPlayable = true
			}
		}
	}
	if !identifiedPlayable && inferredPlayableIndex >= 0 {
		b.handKnowledge[to][inferredPlayableIndex].setIsPlayable(true)
	}

	playerExpectingWarning := (from + 1) % len(b.handKnowledge)
	if to != playerExpectingWarning {
		b.noValuableWarningWasGiven(from)
	}
}

func (b *SmartBot) PleaseObserveValueHint(s bot.Server, from, to int, value card.Value, indices card.CardIndices) {
	b.server = s

	playerExpectingWarning := (from + 1) % len(b.handKnowledge)
	discardIndex := b.nextDiscardIndex(playerExpectingWarning)

	isHintStoneReclaim := !s.DiscardingIsAllowed() &&
		from == (to+1)%s.NumPlayers() &&
		indices.Contains(0)
	isWarning := !isHintStoneReclaim &&
		to == playerExpectingWarning &&
		discardIndex != -1 &&
		indices.Contains(discardIndex) &&
		b.handKnowledge[to][discardIndex].couldBeValuableWithValue(int(value))

	if isWarning {
		b.handKnowledge[to][discardIndex].setIsValuable(true)
	}

	numCards := s.SizeOfHandOfPlayer(to)
	identifiedPlayable := false
	inferredPlayableIndex := -1
	for i := numCards - 1; i >= 0; i-- {
		k := &b.handKnowledge[to][i]
		wasMaybePlayable := k.playable() == maybe
		if indices.Contains(i) {
			k.setMustBeValue(value)
			if wasMaybePlayable {
				if k.playable() == yes {
					identifiedPlayable = true
				} else if k.playable() == maybe && inferredPlayableIndex == -1 {
					inferredPlayableIndex = i
				}
			}
		} else {
			k.setCannotBeValue(value)
			if wasMaybePlayable && k.playable() == yes {
				identifiedPlayable = true
			}
		}
	}
	if !isWarning && !isHintStoneReclaim && !identifiedPlayable && inferredPlayableIndex >= 0 {
		b.handKnowledge[to][inferredPlayableIndex].setIsPlayable(true)
	}
	if to != playerExpectingWarning {
		b.noValuableWarningWasGiven(from)
	}
}

func (b *SmartBot) PleaseObserveAfterMove(s bot.Server) {}

// reductionInEntropy sums the drop in possibility-count a hint would
// cause across every slot, matching reduction_in_entropy.
func reductionInEntropy(oldKnols, newKnols []cardKnowledge) int {
	result := 0
	for i := range oldKnols {
		oldKnols[i].computePossibilities()
		newKnols[i].computePossibilities()
		result += oldKnols[i].possibilities - newKnols[i].possibilities
	}
	return result
}

// bestHintForPlayerGivenConstraint scores every color/value hint that
// touches at least one card in `to`'s hand, keeping the highest-fitness
// one for which isOkay returns true, matching
// bestHintForPlayerGivenConstraint.
func (b *SmartBot) bestHintForPlayerGivenConstraint(to int, isOkay func(h hint, oldKnols, newKnols []cardKnowledge) bool) hint {
	partnersHand := b.server.HandOfPlayer(to)
	var colors [card.NumColors]bool
	var values [6]bool
	for _, c := range partnersHand {
		colors[c.Color] = true
		values[c.Value] = true
	}
	oldKnols := b.handKnowledge[to]
	best := newHint()
	best.to = to

	for k := card.Color(0); k < card.NumColors; k++ {
		if !colors[k] {
			continue
		}
		h := hint{to: to, color: int(k), value: -1}
		newKnols := append([]cardKnowledge(nil), oldKnols...)
		for c, pc := range partnersHand {
			if pc.Color == k {
				newKnols[c].setMustBeColor(k)
			} else {
				newKnols[c].setCannotBeColor(k)
			}
		}
		if isOkay(h, oldKnols, newKnols) {
			h.fitness = reductionInEntropy(oldKnols, newKnols)
			if h.fitness > best.fitness {
				best = h
			}
		}
	}
	for v := card.Value(1); v <= 5; v++ {
		if !values[v] {
			continue
		}
		h := hint{to: to, color: -1, value: int(v)}
		newKnols := append([]cardKnowledge(nil), oldKnols...)
		for c, pc := range partnersHand {
			if pc.Value == v {
				newKnols[c].setMustBeValue(v)
			} else {
				newKnols[c].setCannotBeValue(v)
			}
		}
		if isOkay(h, oldKnols, newKnols) {
			h.fitness = reductionInEntropy(oldKnols, newKnols)
			if h.fitness > best.fitness {
				best = h
			}
		}
	}
	return best
}

// bestHintForPlayer scores the best non-misleading hint for `to`,
// avoiding any hint that would be mistaken for a valuable-card warning,
// matching SmartBot::bestHintForPlayer.
func (b *SmartBot) bestHintForPlayer(to int) hint {
	partnersHand := b.server.HandOfPlayer(to)
	isReallyPlayable := make([]bool, len(partnersHand))
	for c, pc := range partnersHand {
		isReallyPlayable[c] = b.server.PileOf(pc.Color).NextValueIs(pc.Value)
	}

	valueToAvoid := -1
	if to == (b.me+1)%len(b.handKnowledge) {
		discardIndex := b.nextDiscardIndex(to)
		if discardIndex != -1 {
			v := int(partnersHand[discardIndex].Value)
			if b.handKnowledge[to][discardIndex].couldBeValuableWithValue(v) {
				valueToAvoid = v
			}
		}
	}

	return b.bestHintForPlayerGivenConstraint(to, func(h hint, oldKnols, newKnols []cardKnowledge) bool {
		if h.value != -1 && h.value == valueToAvoid {
			return false
		}
		revealsPlayable := false
		isMisleading := maybe
		for c := len(partnersHand) - 1; c >= 0; c-- {
			if oldKnols[c].playable() != maybe {
				continue
			}
			if newKnols[c].playable() == yes {
				revealsPlayable = true
			} else if newKnols[c].playable() == maybe && h.includes(partnersHand[c]) {
				if isMisleading == maybe {
					if isReallyPlayable[c] {
						isMisleading = no
					} else {
						isMisleading = yes
					}
				}
			}
		}
		return revealsPlayable || isMisleading == no
	})
}

func (b *SmartBot) maybePlayLowestPlayableCard(s bot.Server) bool {
	bestIndex := -1
	bestFitness := 0.0
	for i := 0; i < b.myHandSize; i++ {
		if b.handKnowledge[b.me][i].playable() == no {
			continue
		}
		eyeKnol := b.handKnowledge[b.me][i]
		eyeKnol.update(true)
		if eyeKnol.playable() != yes {
			continue
		}
		fitness := 6 - float64(eyeKnol.identityValue())
		if b.handKnowledge[b.me][i].playable() != yes {
			fitness += 100
		}
		if fitness > bestFitness {
			bestIndex = i
			bestFitness = fitness
		}
	}
	if bestIndex != -1 {
		s.PleasePlay(bestIndex)
		return true
	}
	return false
}

func (b *SmartBot) maybeDiscardWorthlessCard(s bot.Server) bool {
	bestIndex := -1
	bestFitness := 0.0
	for i := 0; i < b.myHandSize; i++ {
		k := b.handKnowledge[b.me][i]
		if k.worthless() == no {
			continue
		}
		if k.worthless() == maybe {
			eyeKnol := k
			eyeKnol.update(true)
			if eyeKnol.worthless() != yes {
				continue
			}
		}
		fitness := 2.0 - k.probabilityWorthless()
		if fitness > bestFitness {
			bestIndex = i
			bestFitness = fitness
		}
	}
	if bestIndex != -1 {
		s.PleaseDiscard(bestIndex)
		return true
	}
	return false
}

func (b *SmartBot) maybeGiveValuableWarning(s bot.Server) bool {
	if s.HintStonesRemaining() == 0 {
		return false
	}
	playerToWarn := (b.me + 1) % b.numPlayers
	discardIndex := b.nextDiscardIndex(playerToWarn)
	if discardIndex == -1 {
		return false
	}
	targetCard := s.HandOfPlayer(playerToWarn)[discardIndex]
	if !b.isValuable(targetCard) {
		return false
	}

	bestHint := b.bestHintForPlayer(playerToWarn)
	if bestHint.fitness > 0 {
		bestHint.give(s)
		return true
	}

	s.PleaseGiveValueHint(playerToWarn, targetCard.Value)
	return true
}

func (b *SmartBot) maybeDiscardFinesse(s bot.Server) bool {
	if !s.DiscardingIsAllowed() {
		return false
	}
	var myPlayableCards []card.Card
	var myPlayableIndices []int
	for i, k := range b.handKnowledge[b.me] {
		if k.known() && k.valuable() == no && k.playable() == yes {
			myPlayableCards = append(myPlayableCards, k.knownCard())
			myPlayableIndices = append(myPlayableIndices, i)
		}
	}
	if len(myPlayableCards) == 0 {
		return false
	}

	var othersNewest []card.Card
	for i := 1; i < b.numPlayers; i++ {
		partner := (b.me + i) % b.numPlayers
		hand := s.HandOfPlayer(partner)
		if len(hand) == 0 {
			continue
		}
		othersNewest = append(othersNewest, hand[len(hand)-1])
	}

	for j, c := range myPlayableCards {
		count := 0
		for _, oc := range othersNewest {
			if oc == c {
				count++
			}
		}
		if count == 1 {
			s.PleaseDiscard(myPlayableIndices[j])
			return true
		}
	}
	return false
}

func (b *SmartBot) maybeGiveHelpfulHint(s bot.Server) bool {
	if s.HintStonesRemaining() == 0 {
		return false
	}
	best := newHint()
	for i := 1; i < b.numPlayers; i++ {
		partner := (b.me + i) % b.numPlayers
		candidate := b.bestHintForPlayer(partner)
		if candidate.fitness > best.fitness {
			best = candidate
		}
	}
	if best.fitness <= 0 {
		return false
	}
	best.give(s)
	return true
}

// mysteryPlayThreshold mirrors SmartBot.cc's `table` indexed by
// mulligans remaining (0..3).
var mysteryPlayThreshold = [4]int{-99, 1, 1, 3}

func (b *SmartBot) maybePlayMysteryCard(s bot.Server) bool {
	if s.CardsRemainingInDeck() > mysteryPlayThreshold[s.MulligansRemaining()] {
		return false
	}
	bestFitness := 0.0
	bestIndex := -1
	for i := len(b.handKnowledge[b.me]) - 1; i >= 0; i-- {
		eyeKnol := b.handKnowledge[b.me][i]
		eyeKnol.update(true)
		if eyeKnol.playable() == maybe {
			fitness := eyeKnol.probabilityPlayable()
			if fitness > bestFitness {
				bestFitness = fitness
				bestIndex = i
			}
		}
	}
	if bestIndex != -1 {
		s.PleasePlay(bestIndex)
		return true
	}
	return false
}

func (b *SmartBot) maybeDiscardOldCard(s bot.Server) bool {
	bestIndex := b.nextDiscardIndex(b.me)
	if bestIndex != -1 {
		s.PleaseDiscard(bestIndex)
		return true
	}
	return false
}

// PleaseMakeMove runs the priority-ordered move chain, matching
// SmartBot::pleaseMakeMove exactly.
func (b *SmartBot) PleaseMakeMove(s bot.Server) {
	b.server = s

	if s.CardsRemainingInDeck() == 0 {
		if b.maybePlayLowestPlayableCard(s) {
			return
		}
		if b.maybePlayMysteryCard(s) {
			return
		}
	}
	if b.maybeGiveValuableWarning(s) {
		return
	}
	if b.maybeDiscardFinesse(s) {
		return
	}
	if b.maybePlayLowestPlayableCard(s) {
		return
	}
	if b.maybeGiveHelpfulHint(s) {
		return
	}
	if b.maybePlayMysteryCard(s) {
		return
	}

	if !s.DiscardingIsAllowed() {
		numPlayers := s.NumPlayers()
		rightPartner := (b.me + numPlayers - 1) % numPlayers
		s.PleaseGiveValueHint(rightPartner, s.HandOfPlayer(rightPartner)[0].Value)
		return
	}

	if b.maybeDiscardWorthlessCard(s) {
		return
	}
	if b.maybeDiscardOldCard(s) {
		return
	}

	log.Debug().Int("player", b.me).Msg("blueprint: every card looked valuable, discarding least-bad")
	bestIndex := 0
	for i := 0; i < b.myHandSize; i++ {
		if b.handKnowledge[b.me][i].identityValue() > b.handKnowledge[b.me][bestIndex].identityValue() {
			bestIndex = i
		}
	}
	s.PleaseDiscard(bestIndex)
}

// Clone returns an independent deep copy, matching SmartBot::clone.
func (b *SmartBot) Clone() bot.Bot {
	clone := &SmartBot{
		server:     b.server,
		me:         b.me,
		myHandSize: b.myHandSize,
		handSize:   b.handSize,
		numPlayers: b.numPlayers,
		permissive: b.permissive,
	}
	clone.handKnowledge = make([][]cardKnowledge, len(b.handKnowledge))
	for i, hand := range b.handKnowledge {
		clone.handKnowledge[i] = make([]cardKnowledge, len(hand))
		for j, k := range hand {
			clone.handKnowledge[i][j] = k.transfer(clone)
		}
	}
	clone.playedCount = b.playedCount
	clone.locatedCount = b.locatedCount
	clone.eyesightCount = b.eyesightCount
	return clone
}
