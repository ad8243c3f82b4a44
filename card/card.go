// Package card implements the fixed-size Hanabi card, pile, and deck
// primitives (C1): colors, values, per-card multiplicities, and the
// bitset index set used to track which cards in a hand satisfy a
// property.
package card

import "fmt"

// Color is one of the five suits in a standard Hanabi deck.
type Color int8

const (
	Red Color = iota
	Orange
	Yellow
	Green
	Blue
)

// NumColors is the number of suits in a standard deck.
const NumColors = 5

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Orange:
		return "orange"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// Value is a card's rank, 1 through 5.
type Value int8

// ValueMax is the highest playable value in a pile.
const ValueMax = 5

// Card is a single immutable (color, value) pair.
type Card struct {
	Color Color
	Value Value
}

// New constructs a Card.
func New(color Color, value Value) Card {
	return Card{Color: color, Value: value}
}

func (c Card) String() string {
	return fmt.Sprintf("%s %d", c.Color, c.Value)
}

// Count returns how many copies of a card of this value exist in a full
// deck: three 1s, two each of 2-4, one 5.
func (c Card) Count() int {
	return CountOfValue(c.Value)
}

// CountOfValue returns the per-color multiplicity of a given value in a
// full 50-card deck.
func CountOfValue(v Value) int {
	switch v {
	case 1:
		return 3
	case 2, 3, 4:
		return 2
	case 5:
		return 1
	default:
		return 0
	}
}

// DeckSize is the total number of cards in a standard deck (5 colors ×
// (3+2+2+2+1) = 50).
const DeckSize = NumColors * 10

// Pile is the played stack for a single color: only its top value and
// count matter for legality checks.
type Pile struct {
	topValue Value
}

// Empty reports whether no card of this color has been played yet.
func (p Pile) Empty() bool {
	return p.topValue == 0
}

// Size is the number of cards played onto this pile.
func (p Pile) Size() int {
	return int(p.topValue)
}

// TopCard returns the highest card played on this pile. Panics if empty;
// callers must check Empty first, mirroring the C++ reference's assertion.
func (p Pile) TopCard(color Color) Card {
	if p.Empty() {
		panic("card: TopCard called on empty pile")
	}
	return New(color, p.topValue)
}

// NextValueIs reports whether playing a card of this value onto the pile
// would be legal (i.e. it is exactly one higher than the current top, or
// the pile is empty and the value is 1).
func (p Pile) NextValueIs(v Value) bool {
	return int(p.topValue)+1 == int(v)
}

// Increment plays the next card onto the pile.
func (p *Pile) Increment() {
	p.topValue++
}

// Contains reports whether a card has already been played onto this
// pile (i.e. its value is at most the current top value).
func (p Pile) Contains(v Value) bool {
	return v <= p.topValue
}

// String renders the pile's size followed by its color's initial, e.g.
// "3r", matching the C++ reference's pilesAsString format.
func (p Pile) String(color Color) string {
	return fmt.Sprintf("%d%c", p.topValue, p.initial(color))
}

func (p Pile) initial(color Color) byte {
	return color.String()[0]
}

// CardIndices is a small bitset over hand-slot positions (at most 4 or 5
// slots per hand), mirroring the C++ CardIndices bitmask class. It is
// used both for "which of my hand slots match a hint" and for iterating
// legal discard/play targets.
type CardIndices struct {
	mask uint32
}

// NewCardIndices returns an empty index set.
func NewCardIndices() CardIndices {
	return CardIndices{}
}

// Add marks index i as present.
func (ci *CardIndices) Add(i int) {
	ci.mask |= 1 << uint(i)
}

// Contains reports whether index i is present.
func (ci CardIndices) Contains(i int) bool {
	return ci.mask&(1<<uint(i)) != 0
}

// Size is the number of indices present.
func (ci CardIndices) Size() int {
	n := 0
	for m := ci.mask; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// Empty reports whether no indices are present.
func (ci CardIndices) Empty() bool {
	return ci.mask == 0
}
