// JointSearchBot (C10) extends SearchBot so that a seat reasons about its
// own hidden hand using a counterfactual search over its partner's last
// move, not just the partner's blueprint prediction. Grounded on
// original_source/csrc/JointSearchBot.h/.cc's BeliefFrame/updateFrames_/
// constructPrivateBeliefs_ machinery; see DESIGN.md for the specific
// simplifications this port makes relative to that original (bounded to
// one outstanding deferred frame per seat, no hand_map_ slot-drift
// bookkeeping, no cross-frame memoization).
package search

import (
	"golang.org/x/exp/rand"

	"hanabi/belief"
	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/hanaerr"
	"hanabi/move"
	"hanabi/server"
	"hanabi/simul"
)

// boardView is the read-only slice of bot.Server both a real *server.Server
// and a *simul.Server satisfy, enough to recompute a deck composition
// against either a live or a frozen snapshot board.
type boardView interface {
	PileOf(card.Color) card.Pile
	Discards() []card.Card
	HandOfPlayer(int) []card.Card
}

func compositionExcluding(s boardView, owner, numPlayers int) [25]int {
	var piles [card.NumColors]card.Pile
	for c := card.Color(0); c < card.NumColors; c++ {
		piles[c] = s.PileOf(c)
	}
	hands := make([][]card.Card, 0, numPlayers-1)
	for p := 0; p < numPlayers; p++ {
		if p != owner {
			hands = append(hands, s.HandOfPlayer(p))
		}
	}
	return belief.Composition(s.Discards(), piles, hands...)
}

// selfBelief tracks one seat's own-hand belief purely from publicly
// observable information — exactly the computation SearchBot performs
// for its own hand, generalized to an arbitrary owner seat. JointSearchBot
// uses this to maintain a belief about its partner's hand in parallel
// with its own (embedded SearchBot's) belief, matching JointSearchBot.h's
// hand_dists_ vector (one entry per seat, not just the bot's own).
type selfBelief struct {
	owner, numPlayers, handSize int
	cfg                         config.Config
	reg                         *bot.Registry
	sim                         *simul.Server
	dist                        *belief.Distribution
	inited                      bool

	lastActor      int
	lastMoveType   move.Type
	lastSlot       int
	lastActiveCard card.Card
}

func newSelfBelief(owner, numPlayers, handSize int, cfg config.Config, reg *bot.Registry) *selfBelief {
	return &selfBelief{
		owner:      owner,
		numPlayers: numPlayers,
		handSize:   handSize,
		cfg:        cfg,
		reg:        reg,
		dist:       belief.New(owner, owner, handSize, numPlayers),
		lastActor:  -1,
	}
}

func (s *selfBelief) currentComposition(real *server.Server) [25]int {
	return compositionExcluding(real, s.owner, s.numPlayers)
}

func (s *selfBelief) lazyInit(real *server.Server) {
	if s.inited {
		return
	}
	s.inited = true
	s.sim = simul.FromServer(real, s.owner)
	composition := s.currentComposition(real)
	s.dist.Initialize(s.cfg.FiberThreads, s.cfg.NumThreads, composition, func() bot.Bot {
		bots := make([]bot.Bot, s.numPlayers)
		for p := 0; p < s.numPlayers; p++ {
			if p == s.owner {
				continue
			}
			fresh, ok := s.reg.Build(s.cfg.BPBot, p, s.numPlayers, s.handSize)
			if !ok {
				panic(hanaerr.Internal("search.selfBelief.lazyInit", "unknown blueprint bot %q", s.cfg.BPBot))
			}
			fresh.SetPermissive(true)
			bots[p] = fresh
		}
		return roster{bots: bots}
	})
}

func (s *selfBelief) syncSim(real *server.Server) { s.sim.Sync(real, s.owner) }

func (s *selfBelief) forward(f func(bot.Bot, bot.Server)) {
	s.sim.ApplyToAll(f, s.dist, s.owner, false)
}

func (s *selfBelief) updateFromAction(from int, actual move.Move) {
	// newSimulate builds one simulation-server clone per worker goroutine
	// (see belief.Distribution.UpdateFromAction), since SetHand/
	// SimulatePlayerMove mutate shared SimulServer state that is not
	// safe to drive concurrently from a single shared clone.
	newSimulate := func() func(belief.Hand) move.Move {
		sim := s.sim.Clone()
		return func(h belief.Hand) move.Move {
			partner := s.dist.Get(h)
			if partner == nil {
				return move.Move{}
			}
			shadow := partner.(roster).bots[from]
			sim.SetHand(s.owner, h.Cards())
			return sim.SimulatePlayerMove(from, shadow)
		}
	}
	s.dist.UpdateFromAction(s.cfg.FiberThreads, s.cfg.NumThreads, newSimulate, actual, s.cfg.PartnerUniformUnc, nil)
}

func (s *selfBelief) beforeMove(real *server.Server) {
	s.lazyInit(real)
	s.syncSim(real)
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveBeforeMove(witness) })
}

func (s *selfBelief) beforeDiscard(real *server.Server, from, cardIndex int) {
	s.syncSim(real)
	s.lastActor, s.lastMoveType, s.lastSlot = from, move.Discard, cardIndex
	s.lastActiveCard = real.ActiveCard()
	if from != s.owner {
		s.updateFromAction(from, move.NewDiscard(cardIndex))
	}
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveBeforeDiscard(witness, from, cardIndex) })
}

func (s *selfBelief) beforePlay(real *server.Server, from, cardIndex int) {
	s.syncSim(real)
	s.lastActor, s.lastMoveType, s.lastSlot = from, move.Play, cardIndex
	s.lastActiveCard = real.ActiveCard()
	if from != s.owner {
		s.updateFromAction(from, move.NewPlay(cardIndex))
	}
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveBeforePlay(witness, from, cardIndex) })
}

func (s *selfBelief) colorHint(real *server.Server, from, to int, color card.Color, indices card.CardIndices) {
	s.syncSim(real)
	s.lastActor, s.lastMoveType = from, move.HintColor
	if to == s.owner {
		s.dist.UpdateFromHint(belief.AttrColor, int(color), indices)
	}
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveColorHint(witness, from, to, color, indices) })
}

func (s *selfBelief) valueHint(real *server.Server, from, to int, value card.Value, indices card.CardIndices) {
	s.syncSim(real)
	s.lastActor, s.lastMoveType = from, move.HintValue
	if to == s.owner {
		s.dist.UpdateFromHint(belief.AttrValue, int(value), indices)
	}
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveValueHint(witness, from, to, value, indices) })
}

func (s *selfBelief) afterMove(real *server.Server) {
	s.syncSim(real)
	switch {
	case s.lastMoveType == move.Play || s.lastMoveType == move.Discard:
		if s.lastActor == s.owner {
			deckEmpty := real.CardsRemainingInDeck() == 0
			s.dist.UpdateFromMyDraw(s.lastSlot, s.lastActiveCard, s.currentComposition(real), deckEmpty)
		} else if s.lastActor >= 0 {
			if hand := real.HandOfPlayer(s.lastActor); len(hand) > 0 {
				revealed := hand[len(hand)-1]
				comp := s.currentComposition(real)
				remainingBeforeDraw := comp[move.CardIndex(revealed)] + 1
				s.dist.UpdateFromRevealedCard(revealed, remainingBeforeDraw, nil)
			}
		}
	}
	s.lastActor = -1
	s.forward(func(partner bot.Bot, witness bot.Server) { partner.PleaseObserveAfterMove(witness) })
}

// JointSearchBot wraps SearchBot, additionally tracking a public belief
// about its partner's hand (other) purely from observable information.
// Whenever the partner moves — play, discard, or hint — JointSearchBot
// records a single pending frame — a frozen snapshot of the board plus
// the partner's own-hand belief at that moment — and, just before its own
// next move, resolves it: for every hand it might be holding, it runs a
// fresh counterfactual search standing in the partner's seat to check
// whether the partner's actual move is one a real searcher would have
// picked, pruning hand hypotheses the partner's search could not have
// produced. This goes beyond SearchBot's belief update, which only ever
// checks a move against the partner's blueprint. Requires exactly two
// players, matching JointSearchBot.cc's constructor check.
type JointSearchBot struct {
	*SearchBot
	other *selfBelief

	pendingFrom        int
	pendingMove        move.Move
	pendingSim         *simul.Server
	pendingPartnerDist *belief.Distribution
}

// NewJointSearchBot constructs a JointSearchBot for seat index in a
// 2-player game.
func NewJointSearchBot(index, numPlayers, handSize int, cfg config.Config, reg *bot.Registry) *JointSearchBot {
	if numPlayers != 2 {
		panic(hanaerr.Internal("search.NewJointSearchBot", "joint search requires exactly 2 players, got %d", numPlayers))
	}
	return &JointSearchBot{
		SearchBot:   New(index, numPlayers, handSize, cfg, reg),
		other:       newSelfBelief(1-index, numPlayers, handSize, cfg, reg),
		pendingFrom: -1,
	}
}

// RegisterJoint adds "jointsearchbot" to reg.
func RegisterJoint(reg *bot.Registry, cfg config.Config) {
	reg.Register("jointsearchbot", func(index, numPlayers, handSize int) bot.Bot {
		return NewJointSearchBot(index, numPlayers, handSize, cfg, reg)
	})
}

func (j *JointSearchBot) PleaseObserveBeforeMove(s bot.Server) {
	real := asServer(s)
	j.SearchBot.PleaseObserveBeforeMove(s)
	j.other.beforeMove(real)
}

func (j *JointSearchBot) PleaseObserveBeforeDiscard(s bot.Server, from, cardIndex int) {
	real := asServer(s)
	j.capturePending(real, from, move.NewDiscard(cardIndex))
	j.SearchBot.PleaseObserveBeforeDiscard(s, from, cardIndex)
	j.other.beforeDiscard(real, from, cardIndex)
}

func (j *JointSearchBot) PleaseObserveBeforePlay(s bot.Server, from, cardIndex int) {
	real := asServer(s)
	j.capturePending(real, from, move.NewPlay(cardIndex))
	j.SearchBot.PleaseObserveBeforePlay(s, from, cardIndex)
	j.other.beforePlay(real, from, cardIndex)
}

func (j *JointSearchBot) PleaseObserveColorHint(s bot.Server, from, to int, color card.Color, indices card.CardIndices) {
	real := asServer(s)
	j.capturePending(real, from, move.NewHintColor(to, color))
	j.SearchBot.PleaseObserveColorHint(s, from, to, color, indices)
	j.other.colorHint(real, from, to, color, indices)
}

func (j *JointSearchBot) PleaseObserveValueHint(s bot.Server, from, to int, value card.Value, indices card.CardIndices) {
	real := asServer(s)
	j.capturePending(real, from, move.NewHintValue(to, value))
	j.SearchBot.PleaseObserveValueHint(s, from, to, value, indices)
	j.other.valueHint(real, from, to, value, indices)
}

func (j *JointSearchBot) PleaseObserveAfterMove(s bot.Server) {
	j.SearchBot.PleaseObserveAfterMove(s)
	j.other.afterMove(asServer(s))
}

// capturePending records a deferred frame the first time the partner
// moves while no frame is already outstanding. A second partner move
// before the first frame is resolved is not separately tracked — see
// DESIGN.md's joint section for why this bound is acceptable here.
func (j *JointSearchBot) capturePending(real *server.Server, from int, actual move.Move) {
	if from == j.me || j.pendingFrom >= 0 {
		return
	}
	j.pendingFrom = from
	j.pendingMove = actual
	j.pendingSim = simul.FromServer(real, from)
	j.pendingPartnerDist = j.other.dist.Clone()
}

// PleaseMakeMove matches SearchBot.PleaseMakeMove, but first resolves any
// pending frame against j.dist (this seat's own-hand belief), and reseeds
// the rollout PRNG with cfg.JointSearchSeed before searching: both seats'
// JointSearchBot instances, fed identical public histories and the same
// seed, independently reach identical search outcomes, letting each
// predict what the other's search would do without communicating.
func (j *JointSearchBot) PleaseMakeMove(s bot.Server) {
	real := asServer(s)
	j.syncSim(real)

	if j.pendingFrom >= 0 {
		j.resolvePending(real)
	}

	bpMove := j.sim.SimulatePlayerMove(j.me, j.blueprint.Clone())
	j.dist.ApplyDelayedObservations(j.cfg.FiberThreads, j.cfg.NumThreads, j.cfg.DelayedObsThresh)

	cdf := j.dist.ToCDF()
	if len(cdf.Hands) == 0 {
		applyMove(s, bpMove)
		return
	}

	j.Srand(j.cfg.JointSearchSeed)
	chosen, _ := j.doSearch(real, bpMove, move.Move{Type: move.Invalid}, cdf, false)
	applyMove(s, chosen)
}

// resolvePending checks every hand hypothesis still in j.dist (this
// seat's own-hand belief) against a counterfactual search standing in
// the partner's seat: if the partner's actual move could not have
// survived that search's UCB pruning, the partner could not really have
// been holding that belief state — but since the partner's hand-ness here
// is symmetric with this seat's own hypothesis (each hand hypothesis for
// "who" implies a specific deck composition the partner drew from), a
// hypothesis whose implied partner-search disagrees with the observed
// move is pruned. Skipped when this seat's belief holds more than
// cfg.RangeMax hypotheses; SearchBot itself applies no such bound.
func (j *JointSearchBot) resolvePending(real *server.Server) {
	from := j.pendingFrom
	who := j.me
	frameSim := j.pendingSim
	frameMove := j.pendingMove
	fromDist := j.pendingPartnerDist

	j.pendingFrom = -1
	j.pendingSim = nil
	j.pendingPartnerDist = nil

	if j.dist.Size() == 0 || j.dist.Size() > j.cfg.RangeMax {
		return
	}

	pub := compositionExcluding(frameSim, from, j.numPlayers)
	for _, c := range frameSim.HandOfPlayer(who) {
		pub[move.CardIndex(c)]++
	}

	for _, h := range j.dist.Keys() {
		priv := pub
		for _, c := range h.Cards() {
			priv[move.CardIndex(c)]--
		}

		fromPrivate := fromDist.Clone()
		if fromPrivate.ReweightPrivate(j.cfg.FiberThreads, j.cfg.NumThreads, pub, priv) == 0 {
			j.dist.Delete(h)
			continue
		}
		cdf := fromPrivate.ToCDF()
		if len(cdf.Hands) == 0 {
			continue
		}

		mySim := simul.FromServer(frameSim.Server, from)
		mySim.SetHand(who, h.Cards())

		shadow, ok := j.reg.Build(j.cfg.BPBot, from, j.numPlayers, j.handSize)
		if !ok {
			panic(hanaerr.Internal("search.JointSearchBot.resolvePending", "unknown blueprint bot %q", j.cfg.BPBot))
		}
		shadow.SetPermissive(true)
		bpMove := mySim.SimulatePlayerMove(from, shadow.Clone())

		cf := &SearchBot{
			me:         from,
			numPlayers: j.numPlayers,
			handSize:   j.handSize,
			cfg:        j.cfg,
			reg:        j.reg,
			blueprint:  shadow,
			dist:       fromPrivate,
			rng:        rand.New(rand.NewSource(uint64(j.cfg.JointSearchSeed))),
			lastActor:  -1,
		}
		if _, bailed := cf.doSearch(mySim.Server, bpMove, frameMove, cdf, false); bailed {
			j.dist.Delete(h)
		}
	}
}

func (j *JointSearchBot) Clone() bot.Bot {
	return &JointSearchBot{
		SearchBot:   j.SearchBot.Clone().(*SearchBot),
		other:       newSelfBelief(j.other.owner, j.other.numPlayers, j.other.handSize, j.other.cfg, j.other.reg),
		pendingFrom: -1,
	}
}
