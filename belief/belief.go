// Package belief implements the hand-distribution belief engine (C7):
// per-observer posterior distributions over what a partner's hand might
// be, PDF/CDF sampling, and the private/public reweighting JointSearchBot
// needs. Grounded on original_source/csrc/BotUtils.h/.cc's
// FactorizedBeliefs/HandDist/HandDistCDF machinery and SearchBot.cc's
// filterBeliefsConsistentWithHint_/filterBeliefsConsistentWithAction_/
// updateBeliefsFromDraw_.
package belief

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"hanabi/bot"
	"hanabi/card"
	"hanabi/hanaerr"
	"hanabi/move"
	"hanabi/pool"
	"hanabi/simul"
)

// Hand is an ordered sequence of card indices (0..24, see move.CardIndex)
// representing one hypothesis for a player's hand. Slot order is
// semantically meaningful, matching spec.md §3's Hand model.
type Hand []int

// Key renders a Hand as a comparable, hashable map key.
func (h Hand) Key() string {
	b := make([]byte, len(h))
	for i, v := range h {
		b[i] = byte(v)
	}
	return string(b)
}

// Cards converts a Hand back to concrete cards.
func (h Hand) Cards() []card.Card {
	out := make([]card.Card, len(h))
	for i, v := range h {
		out[i] = move.IndexToCard(v)
	}
	return out
}

func handFromKey(key string) Hand {
	h := make(Hand, len(key))
	for i := 0; i < len(key); i++ {
		h[i] = int(key[i])
	}
	return h
}

// Thunk is a deferred observation: apply Fn to a partner bot clone, from
// ObservingPlayer's perspective, with Witness providing the Server view
// the observation function needs — matching BotUtils.h's
// ObservationThunk.
type Thunk struct {
	Fn              func(bot.Bot, bot.Server)
	ObservingPlayer int
	Witness         *simul.Server
}

// DistVal is the value half of a HandDist entry: an unnormalized
// probability weight plus the partner bot snapshots conditioned on the
// key hand, realized lazily via queued delayed observations.
type DistVal struct {
	Prob    float64
	Partner bot.Bot // nil until first Get; this hand's conditioned partner clone
	delayed []Thunk
	mu      sync.Mutex // guards delayed/Partner realization against concurrent Get from rollout workers
}

func (v *DistVal) applyObservations() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.delayed {
		if v.Partner == nil {
			continue
		}
		t.Witness.SetObservingPlayer(t.ObservingPlayer)
		t.Fn(v.Partner, t.Witness)
	}
	v.delayed = nil
}

// Distribution is one observer's belief about one partner's hand: a map
// from Hand to DistVal, matching the HandDist typedef.
type Distribution struct {
	Observer   int
	Partner    int
	HandSize   int
	NumPlayers int

	entries map[string]*DistVal
}

// New constructs an empty Distribution.
func New(observer, partner, handSize, numPlayers int) *Distribution {
	return &Distribution{
		Observer:   observer,
		Partner:    partner,
		HandSize:   handSize,
		NumPlayers: numPlayers,
		entries:    make(map[string]*DistVal),
	}
}

// Size returns the number of hand hypotheses currently tracked.
func (d *Distribution) Size() int { return len(d.entries) }

// Clone returns an independent copy of the distribution's probability
// weights (sharing each hand's already-realized Partner, if any), used by
// JointSearchBot to build a disposable per-hypothesis reweighted copy via
// ReweightPrivate without disturbing the shared original.
func (d *Distribution) Clone() *Distribution {
	out := &Distribution{
		Observer:   d.Observer,
		Partner:    d.Partner,
		HandSize:   d.HandSize,
		NumPlayers: d.NumPlayers,
		entries:    make(map[string]*DistVal, len(d.entries)),
	}
	for k, v := range d.entries {
		out.entries[k] = &DistVal{Prob: v.Prob, Partner: v.Partner, delayed: append([]Thunk(nil), v.delayed...)}
	}
	return out
}

// Delete removes a single hand hypothesis, used when a counterfactual
// search rules it out (JointSearchBot's propagatePrunedHand_).
func (d *Distribution) Delete(h Hand) {
	delete(d.entries, h.Key())
}

// Keys returns every tracked hand hypothesis, as Hand values.
func (d *Distribution) Keys() []Hand {
	out := make([]Hand, 0, len(d.entries))
	for k := range d.entries {
		out = append(out, handFromKey(k))
	}
	return out
}

// Prob returns the current (unnormalized) weight of a hand hypothesis.
func (d *Distribution) Prob(h Hand) float64 {
	if v, ok := d.entries[h.Key()]; ok {
		return v.Prob
	}
	return 0
}

// fullMultiplicity is the deck's per-card-index multiplicity (index
// 0..24, see move.CardIndex), matching Card::count().
func fullMultiplicity() [25]int {
	var m [25]int
	for idx := 0; idx < 25; idx++ {
		m[idx] = move.IndexToCard(idx).Count()
	}
	return m
}

// Composition computes a DeckComposition by subtracting discards, pile
// contents, and every given hand from the full multiplicity table,
// matching BotUtils.cc's getCurrentDeckComposition. Passing no hands
// yields the "public" composition that excludes no hands.
func Composition(discards []card.Card, piles [card.NumColors]card.Pile, hands ...[]card.Card) [25]int {
	comp := fullMultiplicity()
	for _, c := range discards {
		comp[move.CardIndex(c)]--
	}
	for color := card.Color(0); color < card.NumColors; color++ {
		p := piles[color]
		for v := card.Value(1); v <= card.Value(p.Size()); v++ {
			comp[move.CardIndex(card.New(color, v))]--
		}
	}
	for _, h := range hands {
		for _, c := range h {
			comp[move.CardIndex(c)]--
		}
	}
	return comp
}

// Initialize enumerates every ordered hand of size handSize drawable
// from composition, each inserted with the exact probability of drawing
// that ordered sequence without replacement (the falling-factorial
// product, which is identical for every arrangement of a given
// multiset — so this also matches "insert ... proportional to the
// multinomial weight of that exact multiset" from spec.md §4.3).
// partnerOf() returns a fresh clone of the partner's current blueprint
// bot; it is called once per enumerated hand, possibly from multiple
// goroutines concurrently.
//
// The first drawn card's 25 possible values are partitioned across
// `workers` goroutines (index modulo worker count, per spec.md §4.3),
// each enumerating its own share of the ≈2.1M-entry worst case into a
// private map before the results are merged, avoiding contention on a
// shared map. Enumeration progress is logged every ~1M inserted hands.
func (d *Distribution) Initialize(workers, maxInFlight int, composition [25]int, partnerOf func() bot.Bot) {
	d.entries = make(map[string]*DistVal)
	total := 0
	for _, n := range composition {
		total += n
	}
	if total < d.HandSize {
		return
	}

	type branch struct {
		pool  [25]int
		prob  float64
		first int
	}
	var branches []branch
	for v := 0; v < 25; v++ {
		if composition[v] == 0 {
			continue
		}
		branchPool := composition
		branchPool[v]--
		branches = append(branches, branch{pool: branchPool, prob: float64(composition[v]) / float64(total), first: v})
	}
	if len(branches) == 0 {
		return
	}
	if workers <= 0 || workers > len(branches) {
		workers = len(branches)
	}

	groups := make([][]branch, workers)
	for i, b := range branches {
		groups[i%workers] = append(groups[i%workers], b)
	}

	results := make([]map[string]*DistVal, workers)
	var inserted int64

	p := pool.New(workers, maxInFlight)
	tasks := make([]func(context.Context) error, workers)
	for gi, group := range groups {
		gi, group := gi, group
		tasks[gi] = func(ctx context.Context) error {
			local := make(map[string]*DistVal)
			for _, b := range group {
				prefix := make(Hand, 1, d.HandSize)
				prefix[0] = b.first
				d.enumerate(local, b.pool, total-1, prefix, b.prob, partnerOf, &inserted)
			}
			results[gi] = local
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		panic(hanaerr.Internal("belief.Initialize", "enumeration worker pool: %v", err))
	}

	for _, local := range results {
		for k, v := range local {
			d.entries[k] = v
		}
	}
}

func (d *Distribution) enumerate(into map[string]*DistVal, pool [25]int, remaining int, prefix Hand, prob float64, partnerOf func() bot.Bot, inserted *int64) {
	if len(prefix) == d.HandSize {
		key := append(Hand(nil), prefix...).Key()
		var partner bot.Bot
		if partnerOf != nil {
			partner = partnerOf()
		}
		into[key] = &DistVal{Prob: prob, Partner: partner}
		n := atomic.AddInt64(inserted, 1)
		if n%1000000 == 0 {
			log.Info().Int64("hands", n).Msg("belief: hand enumeration progress")
		}
		return
	}
	for v := 0; v < 25; v++ {
		if pool[v] == 0 {
			continue
		}
		pool[v]--
		d.enumerate(into, pool, remaining-1, append(prefix, v), prob*float64(pool[v]+1)/float64(remaining), partnerOf, inserted)
		pool[v]++
	}
}

// Attribute distinguishes the two kinds of hint, for UpdateFromHint.
type Attribute int

const (
	AttrColor Attribute = iota
	AttrValue
)

// UpdateFromHint retains only hands h where, for every slot i,
// (h[i] matches the hinted attribute) == indices.Contains(i), matching
// FactorizedBeliefs::updateFromHint / SearchBot.cc's
// filterBeliefsConsistentWithHint_.
func (d *Distribution) UpdateFromHint(attr Attribute, value int, indices card.CardIndices) {
	for key, v := range d.entries {
		h := handFromKey(key)
		consistent := true
		for i, idx := range h {
			c := move.IndexToCard(idx)
			var matches bool
			if attr == AttrColor {
				matches = int(c.Color) == value
			} else {
				matches = int(c.Value) == value
			}
			if matches != indices.Contains(i) {
				consistent = false
				break
			}
		}
		if !consistent {
			delete(d.entries, key)
		} else {
			_ = v
		}
	}
}

// partitionKeys snapshots the tracked hand keys and splits them into at
// most `workers` groups (index modulo worker count, per spec.md §4.3),
// so that parallel workers each own a disjoint share of the key set and
// never contend on the same map entry.
func (d *Distribution) partitionKeys(workers int) [][]string {
	if len(d.entries) == 0 {
		return nil
	}
	if workers <= 0 || workers > len(d.entries) {
		workers = len(d.entries)
	}
	parts := make([][]string, workers)
	i := 0
	for k := range d.entries {
		parts[i%workers] = append(parts[i%workers], k)
		i++
	}
	return parts
}

// UpdateFromAction reweights every hand hypothesis by simulating the
// acting player's blueprint move under the hypothesis that they hold
// that hand. newSimulate is called once per worker goroutine to build a
// private simulate(h Hand) move.Move closure (each wrapping its own
// simulation-server clone, since the underlying SimulServer state is not
// safe to share across concurrent simulated moves); the returned closure
// is then called once per hand hypothesis assigned to that worker. If
// the simulated move differs from actualMove, the hypothesis's weight is
// multiplied by uncertainty (0 = hard prune, 1 = no update).
// boltzmannProb, if non-nil, makes the factor the hypothesis's own
// reported action probability of actualMove plus uncertainty instead (the
// "Boltzmann" variant), matching SearchBot.cc's
// filterBeliefsConsistentWithAction_, partitioned across
// `workers`/`maxInFlight` fibers per spec.md §5.
func (d *Distribution) UpdateFromAction(workers, maxInFlight int, newSimulate func() func(h Hand) move.Move, actualMove move.Move, uncertainty float64, boltzmannProb func(h Hand) float64) {
	parts := d.partitionKeys(workers)
	if len(parts) == 0 {
		return
	}
	toDelete := make([][]string, len(parts))
	p := pool.New(workers, maxInFlight)
	tasks := make([]func(context.Context) error, len(parts))
	for pi, keys := range parts {
		pi, keys := pi, keys
		tasks[pi] = func(ctx context.Context) error {
			simulate := newSimulate()
			var dead []string
			for _, key := range keys {
				v := d.entries[key]
				h := handFromKey(key)
				predicted := simulate(h)
				if predicted == actualMove {
					continue
				}
				if boltzmannProb != nil {
					v.Prob *= boltzmannProb(h) + uncertainty
				} else {
					v.Prob *= uncertainty
				}
				if v.Prob <= 0 {
					dead = append(dead, key)
				}
			}
			toDelete[pi] = dead
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		panic(hanaerr.Internal("belief.UpdateFromAction", "worker pool: %v", err))
	}
	for _, dead := range toDelete {
		for _, key := range dead {
			delete(d.entries, key)
		}
	}
}

// UpdateFromMyDraw removes hands whose slot myIndex doesn't equal
// playedCard, shifts the remaining hands' slots left at that position,
// and appends every possible drawn card (weighted by deck composition)
// at the end — unless the deck is empty, in which case hands just
// shrink. Matches FactorizedBeliefs::updateFromDraw /
// SearchBot.cc's updateBeliefsFromMyDraw_.
func (d *Distribution) UpdateFromMyDraw(myIndex int, playedCard card.Card, deckComposition [25]int, deckEmpty bool) {
	next := make(map[string]*DistVal)
	playedIdx := move.CardIndex(playedCard)

	total := 0
	for _, n := range deckComposition {
		total += n
	}

	for key, v := range d.entries {
		h := handFromKey(key)
		if h[myIndex] != playedIdx {
			continue
		}
		shifted := append(append(Hand(nil), h[:myIndex]...), h[myIndex+1:]...)
		if deckEmpty || total == 0 {
			next[shifted.Key()] = &DistVal{Prob: v.Prob, Partner: v.Partner}
			continue
		}
		for idx, n := range deckComposition {
			if n == 0 {
				continue
			}
			drawn := append(append(Hand(nil), shifted...), idx)
			p := v.Prob * float64(n) / float64(total)
			if p <= 0 {
				continue
			}
			if existing, ok := next[drawn.Key()]; ok {
				existing.Prob += p
			} else {
				next[drawn.Key()] = &DistVal{Prob: p, Partner: v.Partner}
			}
		}
	}
	d.entries = next
}

// UpdateFromRevealedCard scales every hand containing revealedCard in a
// relevant slot by (remainingBeforeDraw - inHand)/remainingBeforeDraw,
// dropping hands that hit zero, matching
// FactorizedBeliefs::updateFromRevealedCard. relevantIndices, if
// non-nil, restricts which slots count; nil means any slot.
func (d *Distribution) UpdateFromRevealedCard(revealedCard card.Card, remainingBeforeDraw int, relevantIndices []int) {
	revealedIdx := move.CardIndex(revealedCard)
	relevant := func(i int) bool {
		if relevantIndices == nil {
			return true
		}
		for _, r := range relevantIndices {
			if r == i {
				return true
			}
		}
		return false
	}
	for key, v := range d.entries {
		h := handFromKey(key)
		inHand := 0
		for i, idx := range h {
			if idx == revealedIdx && relevant(i) {
				inHand++
			}
		}
		if inHand == 0 {
			continue
		}
		if remainingBeforeDraw <= 0 {
			delete(d.entries, key)
			continue
		}
		factor := float64(remainingBeforeDraw-inHand) / float64(remainingBeforeDraw)
		v.Prob *= factor
		if v.Prob <= 0 {
			delete(d.entries, key)
		}
	}
}

// Enqueue queues an observation thunk against every tracked hand's
// partner, implementing simul.ObservationQueue so that SimulServer's
// ApplyToAll can defer realization until a partner is actually needed.
func (d *Distribution) Enqueue(f func(bot.Bot, bot.Server), me int, updateMe bool, witness *simul.Server) {
	_ = updateMe
	for _, v := range d.entries {
		v.delayed = append(v.delayed, Thunk{Fn: f, ObservingPlayer: me, Witness: witness})
	}
}

// ApplyDelayedObservations batch-realizes every queued thunk across
// every tracked hand, unless the distribution exceeds thresh (a memory
// safeguard), matching SearchBot.cc's applyDelayedObservations and
// spec.md §6's DELAYED_OBS_THRESH. Realization is partitioned across
// `workers`/`maxInFlight` fibers per spec.md §5's "batch-realize ...
// in parallel (fibers)"; each DistVal's own mutex already guards its
// delayed queue, so workers need no further coordination.
func (d *Distribution) ApplyDelayedObservations(workers, maxInFlight, thresh int) {
	if len(d.entries) > thresh {
		return
	}
	parts := d.partitionKeys(workers)
	if len(parts) == 0 {
		return
	}
	p := pool.New(workers, maxInFlight)
	tasks := make([]func(context.Context) error, len(parts))
	for pi, keys := range parts {
		keys := keys
		tasks[pi] = func(ctx context.Context) error {
			for _, key := range keys {
				d.entries[key].applyObservations()
			}
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		panic(hanaerr.Internal("belief.ApplyDelayedObservations", "worker pool: %v", err))
	}
}

// Get returns the partner bot conditioned on hand h, realizing any
// pending delayed observations first, matching HandDistVal::getPartner.
func (d *Distribution) Get(h Hand) bot.Bot {
	v, ok := d.entries[h.Key()]
	if !ok {
		return nil
	}
	v.applyObservations()
	return v.Partner
}

// CheckBeliefs asserts that trueHand remains a key in the distribution,
// matching spec.md §4.3's belief-update invariant: violation is fatal
// (KindInternal, propagated as a BeliefInconsistency per spec.md §7).
func (d *Distribution) CheckBeliefs(trueHand Hand) {
	if _, ok := d.entries[trueHand.Key()]; !ok {
		panic(hanaerr.Internal("belief.CheckBeliefs", "observer %d's true hand fell out of its own distribution for partner %d", d.Observer, d.Partner))
	}
}

// CDF is a parallel hands[]/probs[] prefix-sum representation for
// efficient sampling, matching BotUtils.h's HandDistCDF.
type CDF struct {
	Hands []Hand
	Probs []float64 // probs[i] is the cumulative mass through Hands[i]
}

// ToCDF converts the distribution into a CDF, normalizing so that the
// last entry is exactly 1.0, matching populateHandDistCDF/pdfToCdf.
func (d *Distribution) ToCDF() *CDF {
	hands := d.Keys()
	probs := make([]float64, len(hands))
	total := 0.0
	for i, h := range hands {
		probs[i] = d.Prob(h)
		total += probs[i]
	}
	acc := 0.0
	for i := range probs {
		acc += probs[i] / total
		probs[i] = acc
	}
	if len(probs) > 0 {
		probs[len(probs)-1] = 1.0
	}
	return &CDF{Hands: hands, Probs: probs}
}

// Sample draws the first hand whose cumulative probability exceeds u,
// via binary search, matching BotUtils.cc's upper_bound-based sampling.
func (c *CDF) Sample(u float64) Hand {
	i := sort.Search(len(c.Probs), func(i int) bool { return c.Probs[i] > u })
	if i == len(c.Probs) {
		i = len(c.Probs) - 1
	}
	return c.Hands[i]
}

// ReweightPrivate implements the private→public conversion (spec.md
// §4.3's "Private→public conversion (JointSearchBot)"): given the
// partner's concrete hand `partnerHand` and this (public) distribution
// over a third player's hand, reweight every hypothesis h by
// P(draw h | deck w/ partnerHand removed) / P(draw h | deck w/
// partnerHand included), both computed as without-replacement draw
// probabilities from the respective compositions. Hands reweighted to
// zero are dropped; the surviving count is returned. Partitioned across
// `workers`/`maxInFlight` fibers per spec.md §5, since each hypothesis's
// reweight only reads the two (value-type) composition arrays and
// mutates its own DistVal.
func (d *Distribution) ReweightPrivate(workers, maxInFlight int, publicComposition, privateComposition [25]int) int {
	parts := d.partitionKeys(workers)
	if len(parts) == 0 {
		return len(d.entries)
	}
	toDelete := make([][]string, len(parts))
	p := pool.New(workers, maxInFlight)
	tasks := make([]func(context.Context) error, len(parts))
	for pi, keys := range parts {
		pi, keys := pi, keys
		tasks[pi] = func(ctx context.Context) error {
			var dead []string
			for _, key := range keys {
				h := handFromKey(key)
				v := d.entries[key]
				pPublic := drawProbability(h, publicComposition)
				pPrivate := drawProbability(h, privateComposition)
				if pPublic == 0 {
					dead = append(dead, key)
					continue
				}
				v.Prob *= pPrivate / pPublic
				if v.Prob <= 0 {
					dead = append(dead, key)
				}
			}
			toDelete[pi] = dead
			return nil
		}
	}
	if err := p.Run(context.Background(), tasks); err != nil {
		panic(hanaerr.Internal("belief.ReweightPrivate", "worker pool: %v", err))
	}
	for _, dead := range toDelete {
		for _, key := range dead {
			delete(d.entries, key)
		}
	}
	return len(d.entries)
}

// drawProbability computes the without-replacement draw probability of
// hand h from the given composition, as the falling-factorial product
// used throughout this package.
func drawProbability(h Hand, composition [25]int) float64 {
	pool := composition
	total := 0
	for _, n := range pool {
		total += n
	}
	prob := 1.0
	for _, idx := range h {
		if pool[idx] <= 0 || total <= 0 {
			return 0
		}
		prob *= float64(pool[idx]) / float64(total)
		pool[idx]--
		total--
	}
	return prob
}
