// Package search implements SearchBot (C9): a blueprint-wrapping agent
// that samples its own hidden hand from a belief distribution and runs
// parallel Monte-Carlo rollouts, pruned by UCB confidence bounds, to
// decide whether to deviate from the blueprint's suggested move.
// Grounded on original_source/csrc/SearchBot.h/.cc's SearchBot class and
// BotUtils.h's UCBStats, with the fiber/thread-pool machinery replaced by
// package pool's errgroup+semaphore model (see package pool's doc
// comment) per spec.md §5.
package search

import (
	"context"
	"math"

	"golang.org/x/exp/rand"

	"hanabi/belief"
	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/hanaerr"
	"hanabi/move"
	"hanabi/pool"
	"hanabi/server"
	"hanabi/simul"
	"hanabi/utils"
)

const (
	minSamples            = 100  // UCBStats.stdErr's non-baseline sample floor.
	baselineMinSamples    = 35   // UCBStats.stdErr's baseline sample floor.
	stdMultiplier         = 2.0  // UCB/LCB half-width in non-baseline mode.
	baselineStdMultiplier = 2.5  // pruning threshold in baseline mode.
)

// UCBStats accumulates one move's rollout scores via Welford's online
// mean/variance update, producing the confidence bounds doSearch's
// pruning pass needs. Matches BotUtils.h's UCBStats.
type UCBStats struct {
	bias   float64
	pruned bool
	n      int
	mean   float64
	m2     float64
}

func (u *UCBStats) add(x float64) {
	u.n++
	delta := x - u.mean
	u.mean += delta / float64(u.n)
	u.m2 += delta * (x - u.mean)
}

func (u *UCBStats) variance() float64 {
	if u.n < 2 {
		return 0
	}
	return u.m2 / float64(u.n-1)
}

// stdErr returns the standard error of the mean, or +Inf below the
// sample floor (35 in baseline mode, 100 otherwise) so that
// under-sampled moves never look falsely confident.
func (u *UCBStats) stdErr(baseline bool) float64 {
	floor := minSamples
	if baseline {
		floor = baselineMinSamples
	}
	if u.n < floor {
		return math.Inf(1)
	}
	return math.Sqrt(u.variance() / float64(u.n))
}

func (u *UCBStats) ucb(baseline bool) float64 {
	return u.mean + stdMultiplier*u.stdErr(baseline) + u.bias
}

func (u *UCBStats) lcb(baseline bool) float64 {
	return u.mean - stdMultiplier*u.stdErr(baseline) + u.bias
}

// Mean exposes the running mean, for tests and diagnostics.
func (u *UCBStats) Mean() float64 { return u.mean }

// N exposes the sample count, for tests and diagnostics.
func (u *UCBStats) N() int { return u.n }

// Pruned reports whether a UCB pruning pass has eliminated this move.
func (u *UCBStats) Pruned() bool { return u.pruned }

// roster bundles every other seat's shadow blueprint clone into a single
// bot.Bot, so that one belief.Distribution (over the search bot's own
// otherwise-hidden hand) can carry every partner's hand-conditioned state
// as its single Partner payload. Each call broadcasts to every member,
// retargeting the witness Server's observing seat first so a member's
// HandOfPlayer checks behave exactly as they would for the real seat.
type roster struct {
	bots []bot.Bot // length numPlayers; nil at the search bot's own seat
}

func withObserver(s bot.Server, seat int) bot.Server {
	if sim, ok := s.(*simul.Server); ok {
		sim.SetObservingPlayer(seat)
	}
	return s
}

func (r roster) each(fn func(seat int, b bot.Bot)) {
	for seat, b := range r.bots {
		if b != nil {
			fn(seat, b)
		}
	}
}

func (r roster) PleaseObserveBeforeMove(s bot.Server) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveBeforeMove(withObserver(s, seat)) })
}

func (r roster) PleaseObserveBeforeDiscard(s bot.Server, from, cardIndex int) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveBeforeDiscard(withObserver(s, seat), from, cardIndex) })
}

func (r roster) PleaseObserveBeforePlay(s bot.Server, from, cardIndex int) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveBeforePlay(withObserver(s, seat), from, cardIndex) })
}

func (r roster) PleaseObserveColorHint(s bot.Server, from, to int, color card.Color, indices card.CardIndices) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveColorHint(withObserver(s, seat), from, to, color, indices) })
}

func (r roster) PleaseObserveValueHint(s bot.Server, from, to int, value card.Value, indices card.CardIndices) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveValueHint(withObserver(s, seat), from, to, value, indices) })
}

func (r roster) PleaseObserveAfterMove(s bot.Server) {
	r.each(func(seat int, b bot.Bot) { b.PleaseObserveAfterMove(withObserver(s, seat)) })
}

func (r roster) PleaseMakeMove(bot.Server) {
	panic(hanaerr.Internal("search.roster.PleaseMakeMove", "a roster never moves as a whole; only its member bots move"))
}

func (r roster) Clone() bot.Bot {
	out := roster{bots: make([]bot.Bot, len(r.bots))}
	for seat, b := range r.bots {
		if b != nil {
			out.bots[seat] = b.Clone()
		}
	}
	return out
}

func (r roster) SetPermissive(p bool) {
	r.each(func(_ int, b bot.Bot) { b.SetPermissive(p) })
}

// SearchBot wraps a blueprint bot, sampling its own hidden hand from a
// belief distribution to run search (C9). It requires its Server
// argument to be backed by a concrete *server.Server, matching the
// original's direct `const Hanabi::Server &` dependency (unlike a plain
// blueprint bot, search needs to fork real server state into rollouts).
type SearchBot struct {
	me, numPlayers, handSize int
	cfg                      config.Config
	reg                      *bot.Registry
	blueprint                bot.Bot
	sim                      *simul.Server
	dist                     *belief.Distribution
	rng                      *rand.Rand
	inited                   bool
	permissive               bool

	lastActor      int
	lastMoveType   move.Type
	lastSlot       int
	lastActiveCard card.Card
}

// New constructs a SearchBot for seat index, wrapping the blueprint bot
// named by cfg.BPBot (built from reg). reg is also used to build shadow
// clones of every other seat's blueprint bot for rollouts, matching
// SearchBot.h's BotFactory<SearchBot> specialization: every non-search
// seat in a SearchBot roster runs the same blueprint, set permissive.
func New(index, numPlayers, handSize int, cfg config.Config, reg *bot.Registry) *SearchBot {
	bp, ok := reg.Build(cfg.BPBot, index, numPlayers, handSize)
	if !ok {
		panic(hanaerr.Internal("search.New", "unknown blueprint bot %q", cfg.BPBot))
	}
	return &SearchBot{
		me:         index,
		numPlayers: numPlayers,
		handSize:   handSize,
		cfg:        cfg,
		reg:        reg,
		blueprint:  bp,
		dist:       belief.New(index, index, handSize, numPlayers),
		rng:        rand.New(rand.NewSource(uint64(index) + 1)),
		lastActor:  -1,
	}
}

// Srand reseeds the rollout PRNG, matching server.Server's Srand for
// reproducible search runs.
func (b *SearchBot) Srand(seed int64) {
	b.rng = rand.New(rand.NewSource(uint64(seed)))
}

// Register adds "searchbot" to reg, building SearchBots configured by
// cfg (including which blueprint they wrap).
func Register(reg *bot.Registry, cfg config.Config) {
	reg.Register("searchbot", func(index, numPlayers, handSize int) bot.Bot {
		return New(index, numPlayers, handSize, cfg, reg)
	})
}

func asServer(s bot.Server) *server.Server {
	real, ok := s.(*server.Server)
	if !ok {
		panic(hanaerr.Internal("search.asServer", "SearchBot requires a concrete *server.Server"))
	}
	return real
}

// currentComposition computes the deck composition excluding discards,
// pile contents, and every seat's hand but the search bot's own —
// exactly the pool the bot's own hidden hand is drawn from.
func (b *SearchBot) currentComposition(real *server.Server) [25]int {
	var piles [card.NumColors]card.Pile
	for c := card.Color(0); c < card.NumColors; c++ {
		piles[c] = real.PileOf(c)
	}
	hands := make([][]card.Card, 0, b.numPlayers-1)
	for p := 0; p < b.numPlayers; p++ {
		if p != b.me {
			hands = append(hands, real.HandOfPlayer(p))
		}
	}
	return belief.Composition(real.Discards(), piles, hands...)
}

func (b *SearchBot) lazyInit(real *server.Server) {
	if b.inited {
		return
	}
	b.inited = true
	b.sim = simul.FromServer(real, b.me)
	composition := b.currentComposition(real)
	b.dist.Initialize(b.cfg.FiberThreads, b.cfg.NumThreads, composition, func() bot.Bot {
		bots := make([]bot.Bot, b.numPlayers)
		for p := 0; p < b.numPlayers; p++ {
			if p == b.me {
				continue
			}
			fresh, ok := b.reg.Build(b.cfg.BPBot, p, b.numPlayers, b.handSize)
			if !ok {
				panic(hanaerr.Internal("search.lazyInit", "unknown blueprint bot %q", b.cfg.BPBot))
			}
			fresh.SetPermissive(true)
			bots[p] = fresh
		}
		return roster{bots: bots}
	})
}

func (b *SearchBot) syncSim(real *server.Server) {
	b.sim.Sync(real, b.me)
}

// forward queues f against every hand hypothesis's roster, realized
// lazily by package belief only when a hypothesis is actually sampled —
// matching the observer pipeline's "forward the event to every partner
// snapshot via applyToAll" step.
func (b *SearchBot) forward(f func(bot.Bot, bot.Server)) {
	b.sim.ApplyToAll(f, b.dist, b.me, false)
}

// updateFromAction reweights the belief about the search bot's own hand
// using the fact that seat `from`, who is not the search bot, chose
// actual over whatever its blueprint shadow would have predicted under
// each hand hypothesis.
func (b *SearchBot) updateFromAction(from int, actual move.Move) {
	// newSimulate builds one simulation-server clone per worker goroutine
	// (see belief.Distribution.UpdateFromAction), since SetHand/
	// SimulatePlayerMove mutate shared SimulServer state that is not
	// safe to drive concurrently from a single shared clone.
	newSimulate := func() func(belief.Hand) move.Move {
		sim := b.sim.Clone()
		return func(h belief.Hand) move.Move {
			partner := b.dist.Get(h)
			if partner == nil {
				return move.Move{}
			}
			shadow := partner.(roster).bots[from]
			sim.SetHand(b.me, h.Cards())
			return sim.SimulatePlayerMove(from, shadow)
		}
	}

	uncertainty := b.cfg.PartnerUniformUnc
	var boltzmann func(belief.Hand) float64
	if b.cfg.PartnerBoltzmannUnc > 0 {
		uncertainty = b.cfg.PartnerBoltzmannUnc
		boltzmann = func(h belief.Hand) float64 {
			partner := b.dist.Get(h)
			if partner == nil {
				return 0
			}
			shadow := partner.(roster).bots[from]
			ap, ok := shadow.(bot.ActionProbs)
			if !ok {
				return 0
			}
			idx := move.Index(actual, from, b.numPlayers, b.handSize)
			return ap.GetActionProbs()[idx]
		}
	}
	b.dist.UpdateFromAction(b.cfg.FiberThreads, b.cfg.NumThreads, newSimulate, actual, uncertainty, boltzmann)
}

func (b *SearchBot) PleaseObserveBeforeMove(s bot.Server) {
	real := asServer(s)
	b.lazyInit(real)
	b.syncSim(real)
	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveBeforeMove(witness)
	})
}

func (b *SearchBot) PleaseObserveBeforeDiscard(s bot.Server, from, cardIndex int) {
	real := asServer(s)
	b.syncSim(real)
	b.lastActor, b.lastMoveType, b.lastSlot = from, move.Discard, cardIndex
	b.lastActiveCard = real.ActiveCard()
	if from != b.me {
		b.updateFromAction(from, move.NewDiscard(cardIndex))
	}
	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveBeforeDiscard(witness, from, cardIndex)
	})
}

func (b *SearchBot) PleaseObserveBeforePlay(s bot.Server, from, cardIndex int) {
	real := asServer(s)
	b.syncSim(real)
	b.lastActor, b.lastMoveType, b.lastSlot = from, move.Play, cardIndex
	b.lastActiveCard = real.ActiveCard()
	if from != b.me {
		b.updateFromAction(from, move.NewPlay(cardIndex))
	}
	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveBeforePlay(witness, from, cardIndex)
	})
}

func (b *SearchBot) PleaseObserveColorHint(s bot.Server, from, to int, color card.Color, indices card.CardIndices) {
	real := asServer(s)
	b.syncSim(real)
	b.lastActor, b.lastMoveType = from, move.HintColor
	if to == b.me {
		b.dist.UpdateFromHint(belief.AttrColor, int(color), indices)
	}
	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveColorHint(witness, from, to, color, indices)
	})
}

func (b *SearchBot) PleaseObserveValueHint(s bot.Server, from, to int, value card.Value, indices card.CardIndices) {
	real := asServer(s)
	b.syncSim(real)
	b.lastActor, b.lastMoveType = from, move.HintValue
	if to == b.me {
		b.dist.UpdateFromHint(belief.AttrValue, int(value), indices)
	}
	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveValueHint(witness, from, to, value, indices)
	})
}

func (b *SearchBot) PleaseObserveAfterMove(s bot.Server) {
	real := asServer(s)
	b.syncSim(real)

	switch {
	case b.lastMoveType == move.Play || b.lastMoveType == move.Discard:
		if b.lastActor == b.me {
			deckEmpty := real.CardsRemainingInDeck() == 0
			b.dist.UpdateFromMyDraw(b.lastSlot, b.lastActiveCard, b.currentComposition(real), deckEmpty)
		} else if b.lastActor >= 0 {
			if hand := real.HandOfPlayer(b.lastActor); len(hand) > 0 {
				revealed := hand[len(hand)-1]
				comp := b.currentComposition(real)
				remainingBeforeDraw := comp[move.CardIndex(revealed)] + 1
				b.dist.UpdateFromRevealedCard(revealed, remainingBeforeDraw, nil)
			}
		}
	}
	b.lastActor = -1

	b.forward(func(partner bot.Bot, witness bot.Server) {
		partner.PleaseObserveAfterMove(witness)
	})
}

func applyMove(s bot.Server, m move.Move) {
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
		panic(hanaerr.Internal("search.applyMove", "invalid move type"))
	}
}

// PleaseMakeMove implements the move-selection procedure (spec.md
// §4.4): ask the blueprint for its candidate move, materialize any
// pending delayed observations, convert beliefs to a CDF, search, then
// execute the winner.
func (b *SearchBot) PleaseMakeMove(s bot.Server) {
	real := asServer(s)
	b.syncSim(real)

	bpMove := b.sim.SimulatePlayerMove(b.me, b.blueprint.Clone())

	b.dist.ApplyDelayedObservations(b.cfg.FiberThreads, b.cfg.NumThreads, b.cfg.DelayedObsThresh)

	cdf := b.dist.ToCDF()
	if len(cdf.Hands) == 0 {
		applyMove(s, bpMove)
		return
	}

	chosen, _ := b.doSearch(real, bpMove, move.Move{Type: move.Invalid}, cdf, false)
	applyMove(s, chosen)
}

func (b *SearchBot) Clone() bot.Bot {
	clone := *b
	clone.blueprint = b.blueprint.Clone()
	clone.dist = belief.New(b.me, b.me, b.handSize, b.numPlayers)
	clone.sim = nil
	clone.inited = false
	clone.lastActor = -1
	clone.rng = rand.New(rand.NewSource(b.rng.Uint64()))
	return &clone
}

func (b *SearchBot) SetPermissive(p bool) {
	b.permissive = p
	b.blueprint.SetPermissive(p)
}

func roundDown(n, multiple int) int {
	if multiple <= 0 {
		return n
	}
	return (n / multiple) * multiple
}

func bestMoveIndex(stats []*UCBStats, fallback int) int {
	best := -1
	bestScore := math.Inf(-1)
	for i, st := range stats {
		if st.pruned {
			continue
		}
		score := st.mean + st.bias
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return fallback
	}
	return best
}

// doSearch runs parallel Monte-Carlo rollouts with UCB pruning (spec.md
// §4.4's doSearch_): bpMove is the observer's blueprint candidate;
// frameMove, if its Type is not move.Invalid, names a move that, once
// pruned, makes this call an early "not this move" bail — used by
// JointSearchBot.resolvePending's belief-frame analysis. Returns the chosen move and
// whether frameMove was pruned (a bail signal, meaningless when
// frameMove.Type is move.Invalid).
func (b *SearchBot) doSearch(real *server.Server, bpMove, frameMove move.Move, cdf *belief.CDF, verbose bool) (move.Move, bool) {
	moves := move.Enumerate(real)
	if len(moves) == 0 {
		return bpMove, false
	}

	bpIdx := utils.FindIndex(moves, bpMove)
	if bpIdx < 0 {
		moves = append(moves, bpMove)
		bpIdx = len(moves) - 1
	}
	numMoves := len(moves)

	stats := make([]*UCBStats, numMoves)
	for i := range stats {
		stats[i] = &UCBStats{}
	}
	stats[bpIdx].bias = b.cfg.SearchThresh

	n := roundDown(b.cfg.SearchN, numMoves)
	if n == 0 {
		n = numMoves
	}
	threads := roundDown(b.cfg.NumThreads, numMoves)
	if threads == 0 {
		threads = numMoves
	}
	if threads > n {
		threads = n
	}

	seeds := make([]uint64, n/numMoves)
	for i := range seeds {
		seeds[i] = b.rng.Uint64()
	}

	worker := pool.New(b.cfg.FiberThreads, threads)
	results := make([]float64, n)
	skip := make([]bool, n)

	frameBailed := false

	for _, batch := range pool.Batches(n, threads) {
		batchStart, batchEnd := batch[0], batch[1]

		tasks := make([]func(context.Context) error, 0, batchEnd-batchStart)
		for j := batchStart; j < batchEnd; j++ {
			j := j
			mi := j % numMoves
			g := j / numMoves
			tasks = append(tasks, func(ctx context.Context) error {
				if stats[mi].pruned {
					skip[j] = true
					return nil
				}
				rng := rand.New(rand.NewSource(seeds[g]))
				results[j] = b.oneRollout(real, moves[mi], cdf, rng)
				return nil
			})
		}
		if err := worker.Run(context.Background(), tasks); err != nil {
			panic(hanaerr.Internal("search.doSearch", "rollout worker pool: %v", err))
		}

		for g := batchStart / numMoves; g < batchEnd/numMoves; g++ {
			base := g * numMoves
			bpScore := 0.0
			if !skip[base+bpIdx] {
				bpScore = results[base+bpIdx]
			}
			for mi := 0; mi < numMoves; mi++ {
				j := base + mi
				if skip[j] {
					continue
				}
				score := results[j]
				if b.cfg.OptimizeWins {
					if score >= 25 {
						score = 1
					} else {
						score = 0
					}
				}
				if b.cfg.SearchBaseline {
					score -= bpScore
				}
				stats[mi].add(score)
			}
		}

		if b.cfg.UCB {
			best := bestMoveIndex(stats, bpIdx)
			for mi := range stats {
				if mi == best || stats[mi].pruned {
					continue
				}
				if b.cfg.SearchBaseline {
					se := math.Sqrt(sq(stats[mi].stdErr(true)) + sq(stats[best].stdErr(true)))
					if stats[best].mean-stats[mi].mean > baselineStdMultiplier*se {
						stats[mi].pruned = true
					}
				} else if mi != bpIdx {
					if stats[mi].ucb(false) < stats[best].lcb(false) {
						stats[mi].pruned = true
					}
				}
			}
		}

		if frameMove.Type != move.Invalid {
			for mi, m := range moves {
				if m == frameMove && stats[mi].pruned {
					frameBailed = true
				}
			}
			if frameBailed {
				break
			}
		}

		unpruned := 0
		for _, st := range stats {
			if !st.pruned {
				unpruned++
			}
		}
		if unpruned <= 1 {
			break
		}
	}

	best := bestMoveIndex(stats, bpIdx)
	return moves[best], frameBailed
}

func sq(x float64) float64 { return x * x }

// oneRollout runs a single Monte-Carlo playout (spec.md §4.4.5): sample
// a hand for the search bot's own seat, rebuild and shuffle the
// remaining deck, apply the candidate move to a simulated copy of real,
// and play the rest of the game out with every other seat's
// hand-conditioned blueprint clone.
func (b *SearchBot) oneRollout(real *server.Server, candidate move.Move, cdf *belief.CDF, rng *rand.Rand) float64 {
	hand := cdf.Sample(rng.Float64())

	var piles [card.NumColors]card.Pile
	for c := card.Color(0); c < card.NumColors; c++ {
		piles[c] = real.PileOf(c)
	}
	hands := make([][]card.Card, 0, b.numPlayers)
	for p := 0; p < b.numPlayers; p++ {
		if p == b.me {
			hands = append(hands, hand.Cards())
		} else {
			hands = append(hands, real.HandOfPlayer(p))
		}
	}
	comp := belief.Composition(real.Discards(), piles, hands...)
	deck := deckFromComposition(comp)
	shuffleDeck(deck, rng)

	sim := simul.FromServer(real, b.me)
	sim.SetHand(b.me, hand.Cards())
	sim.SetDeck(deck)

	players := make([]bot.Bot, b.numPlayers)
	players[b.me] = b.blueprint.Clone()
	if partner := b.dist.Get(hand); partner != nil {
		r := partner.(roster)
		for p := 0; p < b.numPlayers; p++ {
			if p != b.me {
				players[p] = r.bots[p].Clone()
			}
		}
	} else {
		for p := 0; p < b.numPlayers; p++ {
			if p != b.me {
				fresh, _ := b.reg.Build(b.cfg.BPBot, p, b.numPlayers, b.handSize)
				fresh.SetPermissive(true)
				players[p] = fresh
			}
		}
	}
	sim.SetPlayers(players)

	sim.ApplyMove(candidate)
	if sim.GameOver() {
		return float64(sim.CurrentScore())
	}
	sim.DispatchObserveAfterMove()
	sim.AdvanceTurn()
	return float64(sim.RunToCompletion())
}

func deckFromComposition(comp [25]int) []card.Card {
	var deck []card.Card
	for idx, n := range comp {
		c := move.IndexToCard(idx)
		for k := 0; k < n; k++ {
			deck = append(deck, c)
		}
	}
	return deck
}

func shuffleDeck(deck []card.Card, rng *rand.Rand) {
	for i := len(deck) - 1; i > 0; i-- {
		j := int(rng.Int63n(int64(i + 1)))
		deck[i], deck[j] = deck[j], deck[i]
	}
}
