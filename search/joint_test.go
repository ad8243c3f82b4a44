package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hanabi/blueprint"
	"hanabi/bot"
	"hanabi/card"
	"hanabi/config"
	"hanabi/move"
	"hanabi/server"
	"hanabi/simul"
)

// newSmallJointSearchBot builds a JointSearchBot whose own-hand belief
// (sb.dist) and partner belief (other.dist) are both seeded from a tiny
// handSize-card composition, exactly as newSmallSearchBot bypasses
// lazyInit's full-deck enumeration for SearchBot above.
func newSmallJointSearchBot(t *testing.T, real *server.Server, reg *bot.Registry, cfg config.Config, handSize, numPlayers int) *JointSearchBot {
	t.Helper()

	sb := newSmallSearchBot(t, reg, cfg, handSize, numPlayers)
	sb.sim = simul.FromServer(real, sb.me)
	sb.inited = true

	other := newSelfBelief(1-sb.me, numPlayers, handSize, cfg, reg)
	other.sim = simul.FromServer(real, other.owner)
	other.inited = true

	var composition [25]int
	for idx := 0; idx < handSize; idx++ {
		composition[idx] = 1
	}
	// workers=1: partnerOf below asserts via require.True(t, ...), and
	// testify's T.FailNow may only be called from the test's own
	// goroutine, so this helper keeps Initialize single-threaded rather
	// than passing cfg's real worker counts.
	other.dist.Initialize(1, 1, composition, func() bot.Bot {
		bots := make([]bot.Bot, numPlayers)
		for p := 0; p < numPlayers; p++ {
			if p == other.owner {
				continue
			}
			fresh, ok := reg.Build(cfg.BPBot, p, numPlayers, handSize)
			require.True(t, ok)
			bots[p] = fresh
		}
		return roster{bots: bots}
	})

	return &JointSearchBot{SearchBot: sb, other: other, pendingFrom: -1}
}

func TestNewJointSearchBotRequiresTwoPlayers(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	require.Panics(t, func() { NewJointSearchBot(0, 3, 5, cfg, reg) })
}

func TestRegisterJointAddsJointSearchBotCaseInsensitively(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()
	RegisterJoint(reg, cfg)

	b, ok := reg.Build("JointSearchBot", 0, 2, 5)
	require.True(t, ok)
	_, isJoint := b.(*JointSearchBot)
	require.True(t, isJoint)
}

func TestJointSearchBotCloneResetsPendingAndRebuildsOther(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	orig := NewJointSearchBot(0, 2, 5, cfg, reg)
	orig.pendingFrom = 1
	orig.pendingMove = move.NewPlay(2)

	clone := orig.Clone().(*JointSearchBot)

	require.Equal(t, -1, clone.pendingFrom)
	require.Nil(t, clone.pendingSim)
	require.Nil(t, clone.pendingPartnerDist)
	require.NotSame(t, orig.other, clone.other)
	require.False(t, clone.other.inited)
	require.Equal(t, orig.other.owner, clone.other.owner)
}

func TestCapturePendingOnlyRecordsOneOutstandingFrame(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	probe := &probeBot{t: t, fn: func(t *testing.T, real *server.Server) {
		j := newSmallJointSearchBot(t, real, reg, cfg, real.HandSize(), 2)

		j.capturePending(real, 1, move.NewDiscard(0))
		require.Equal(t, 1, j.pendingFrom)
		require.Equal(t, move.NewDiscard(0), j.pendingMove)
		require.NotNil(t, j.pendingSim)
		require.NotNil(t, j.pendingPartnerDist)

		j.capturePending(real, 1, move.NewPlay(1))
		require.Equal(t, move.NewDiscard(0), j.pendingMove,
			"a second partner move before the pending frame resolves must not overwrite it")

		j.capturePending(real, 0, move.NewPlay(2))
		require.Equal(t, move.NewDiscard(0), j.pendingMove,
			"the bot's own move must never be captured as a pending frame")
	}}

	real := server.New(cfg)
	real.Srand(11)
	real.RunGame([]bot.Bot{probe, &passBot{}}, nil)
	require.True(t, probe.done)
}

func TestResolvePendingClearsFrameAndNeverGrowsTheDistribution(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	probe := &probeBot{t: t, fn: func(t *testing.T, real *server.Server) {
		handSize := real.HandSize()
		j := newSmallJointSearchBot(t, real, reg, cfg, handSize, 2)
		sizeBefore := j.dist.Size()
		require.Greater(t, sizeBefore, 0)

		j.capturePending(real, 1, move.NewDiscard(0))
		require.Equal(t, 1, j.pendingFrom)

		j.resolvePending(real)

		require.Equal(t, -1, j.pendingFrom)
		require.Nil(t, j.pendingSim)
		require.Nil(t, j.pendingPartnerDist)
		require.LessOrEqual(t, j.dist.Size(), sizeBefore)
	}}

	real := server.New(cfg)
	real.Srand(23)
	real.RunGame([]bot.Bot{probe, &passBot{}}, nil)
	require.True(t, probe.done)
}

func TestResolvePendingIsANoOpBelowOneHypothesis(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	probe := &probeBot{t: t, fn: func(t *testing.T, real *server.Server) {
		handSize := real.HandSize()
		j := newSmallJointSearchBot(t, real, reg, cfg, handSize, 2)
		for _, h := range j.dist.Keys() {
			j.dist.Delete(h)
		}
		require.Equal(t, 0, j.dist.Size())

		j.capturePending(real, 1, move.NewDiscard(0))
		j.resolvePending(real)

		require.Equal(t, -1, j.pendingFrom, "resolvePending must always clear the pending frame, even when it bails out early")
		require.Equal(t, 0, j.dist.Size())
	}}

	real := server.New(cfg)
	real.Srand(29)
	real.RunGame([]bot.Bot{probe, &passBot{}}, nil)
	require.True(t, probe.done)
}

// TestJointSearchBotObserverOverridesUpdatePartnerBelief exercises the
// observer overrides via a color hint rather than a discard/play,
// because ActiveCard (read by the embedded SearchBot's own
// PleaseObserveBeforeDiscard/BeforePlay) is only valid inside the
// observable window opened by an actual in-progress discard/play, which
// this probe callback runs outside of.
func TestJointSearchBotObserverOverridesUpdatePartnerBelief(t *testing.T) {
	reg := bot.NewRegistry()
	blueprint.Register(reg)
	cfg := newTestConfig()

	probe := &probeBot{t: t, fn: func(t *testing.T, real *server.Server) {
		handSize := real.HandSize()
		j := newSmallJointSearchBot(t, real, reg, cfg, handSize, 2)

		j.PleaseObserveBeforeMove(real)
		require.True(t, j.inited)
		require.True(t, j.other.inited)

		j.PleaseObserveColorHint(real, 1, 0, card.Red, card.NewCardIndices())
		require.Equal(t, 1, j.pendingFrom, "a hint from the partner must also capture a pending frame")
		require.Equal(t, move.HintColor, j.other.lastMoveType)
		require.Equal(t, 1, j.other.lastActor)
	}}

	real := server.New(cfg)
	real.Srand(31)
	real.RunGame([]bot.Bot{probe, &passBot{}}, nil)
	require.True(t, probe.done)
}
