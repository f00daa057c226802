// Package phase drives the session state machine: Discussion, Voting,
// Resolution, then GameOver or the next round. Timer-driven transitions
// race event-driven ones (all players voted before the clock ran out), so
// every transition commits through the session's compare-and-swap; the
// loser of the race no-ops.
package phase

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/errors"
	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/logging"
	"github.com/daehan-lim/humanhunter/internal/vote"
)

// Controller runs one session's phase state machine.
type Controller struct {
	session    *game.Session
	aggregator *vote.Aggregator
	capability agent.Capability
	bus        *event.Bus
	logger     *logging.Logger

	discussionBudget time.Duration
	votingBudget     time.Duration
	ruleset          game.Ruleset
	agentQuota       int

	mu  sync.Mutex
	rng *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// timerCancel stops the current phase's wall-clock timer. Cancellation
	// is advisory; a timer that already fired still has to win the
	// phase CAS to have any effect.
	timerMu     sync.Mutex
	timerCancel context.CancelFunc
}

// NewController creates a controller for the given session.
func NewController(session *game.Session, aggregator *vote.Aggregator, capability agent.Capability, opts ...Option) *Controller {
	c := &Controller{
		session:          session,
		aggregator:       aggregator,
		capability:       capability,
		bus:              event.NewBus(),
		logger:           logging.NopLogger(),
		discussionBudget: 180 * time.Second,
		votingBudget:     60 * time.Second,
		ruleset:          game.RulesetSuspect,
		agentQuota:       1,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bus returns the event bus phase and game events are published on.
func (c *Controller) Bus() *event.Bus {
	return c.bus
}

// Start begins driving the state machine. The session must be in its
// initial Discussion phase.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.bus.Publish(event.NewTopicAnnouncedEvent(c.session.RoomCode(), c.session.Round(), c.session.Topic()))
	c.bus.Publish(event.NewPhaseChangedEvent(c.session.RoomCode(), game.PhaseDiscussion.String(),
		"Discussion started. Find the humans."))
	c.startPhaseTimer(game.PhaseDiscussion, c.discussionBudget, c.advanceToVoting)
}

// Stop cancels all timers and in-flight work. It does not mutate the
// session; a stopped controller leaves the session in whatever phase it
// had reached.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// HandleMessage commits a human chat message. During any phase other than
// Discussion the write is refused with ErrWrongPhase.
func (c *Controller) HandleMessage(sender, body string) (game.Message, error) {
	msg, err := c.session.AppendMessage(sender, body)
	if err != nil {
		return game.Message{}, err
	}
	c.bus.Publish(event.NewChatMessageEvent(c.session.RoomCode(), msg.Sender, msg.Body))
	return msg, nil
}

// HandleVote commits a human vote and triggers resolution when it was the
// last one outstanding.
func (c *Controller) HandleVote(voter, target string) error {
	complete, err := c.aggregator.Cast(c.session, voter, target)
	if err != nil {
		return err
	}
	c.bus.Publish(event.NewVoteRecordedEvent(c.session.RoomCode(), voter))
	if complete {
		c.resolve()
	}
	return nil
}

// ResolveIfComplete resolves the round when every remaining active player
// has already voted. Roster changes during Voting call this so the phase
// does not wait out the timer after the last outstanding ballot disappears
// with its voter.
func (c *Controller) ResolveIfComplete() {
	if c.session.Phase() == game.PhaseVoting && c.session.AllVoted() {
		c.resolve()
	}
}

// AdvanceToVoting is the explicit manual advance out of Discussion.
func (c *Controller) AdvanceToVoting() {
	c.advanceToVoting()
}

// advanceToVoting commits the Discussion→Voting transition. Both the
// discussion timer and a manual advance funnel through here; the CAS makes
// it safe for them to race.
func (c *Controller) advanceToVoting() {
	if !c.session.AdvancePhase(game.PhaseDiscussion, game.PhaseVoting) {
		return
	}
	c.logger.WithPhase(game.PhaseVoting.String()).Info("voting started",
		"room", c.session.RoomCode(), "round", c.session.Round())
	c.bus.Publish(event.NewPhaseChangedEvent(c.session.RoomCode(), game.PhaseVoting.String(),
		"Time's up. Vote for who you think is an AI."))

	c.startPhaseTimer(game.PhaseVoting, c.votingBudget, c.resolve)
	c.collectAgentVotes()
}

// collectAgentVotes drives every pending agent to cast a vote, with small
// pacing delays for realism. A capability failure for one agent falls back
// to a random eligible target so voting never stalls the phase.
func (c *Controller) collectAgentVotes() {
	voters := c.session.PendingVoters()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, voterID := range voters {
			if !c.sleep(c.randDuration(500*time.Millisecond, 1200*time.Millisecond)) {
				return
			}
			if c.session.Phase() != game.PhaseVoting {
				return
			}
			c.castAgentVote(voterID)
		}
	}()
}

func (c *Controller) castAgentVote(voterID string) {
	eligible := c.eligibleTargets(voterID)
	if len(eligible) == 0 {
		return
	}

	var lines []agent.ChatLine
	for _, m := range c.session.ChatLog() {
		lines = append(lines, agent.ChatLine{Sender: m.Sender, Body: m.Body})
	}

	target, err := c.capability.Vote(c.ctx, agent.VoteContext{
		AgentID:  voterID,
		ChatLog:  lines,
		Eligible: eligible,
	})
	if err != nil || !contains(eligible, target) {
		target = eligible[c.randIndex(len(eligible))]
	}

	complete, err := c.aggregator.Cast(c.session, voterID, target)
	if err != nil {
		// A phase change or a racing duplicate; either way this vote is done.
		if !errors.Is(err, errors.ErrAlreadyVoted) && !errors.Is(err, errors.ErrWrongPhase) {
			c.logger.Warn("agent vote rejected", "voter", voterID, "error", err)
		}
		return
	}
	c.bus.Publish(event.NewVoteRecordedEvent(c.session.RoomCode(), voterID))
	if complete {
		c.resolve()
	}
}

// resolve commits Voting→Resolution, computes the outcome, and decides
// between GameOver and the next round. The all-voted trigger and the
// voting timer both call this; the CAS guarantees only one of them runs
// the body.
func (c *Controller) resolve() {
	if !c.session.AdvancePhase(game.PhaseVoting, game.PhaseResolution) {
		return
	}

	outcome, over := c.aggregator.Resolve(c.session, c.ruleset, c.agentQuota)
	c.bus.Publish(event.NewVoteResultEvent(c.session.RoomCode(),
		outcome.Suspect, outcome.Role.String(), outcome.VoteCounts))
	c.logger.Info("round resolved",
		"room", c.session.RoomCode(),
		"round", c.session.Round(),
		"suspect", outcome.Suspect,
		"role", outcome.Role.String(),
		"game_over", over)

	if c.ruleset == game.RulesetElimination {
		c.session.Eliminate(outcome.Suspect)
	}

	if over {
		c.session.SetOutcome(outcome)
		c.endGame(outcome)
		return
	}
	c.nextRound()
}

func (c *Controller) endGame(outcome game.Outcome) {
	c.cancelPhaseTimer()
	if !c.session.AdvancePhase(game.PhaseResolution, game.PhaseGameOver) {
		return
	}
	c.bus.Publish(event.NewPhaseChangedEvent(c.session.RoomCode(), game.PhaseGameOver.String(), "Game over."))
	c.bus.Publish(event.NewGameOverEvent(c.session.RoomCode(),
		outcome.Winner.String(), outcome.Suspect, outcome.Role.String()))
}

func (c *Controller) nextRound() {
	if !c.session.AdvancePhase(game.PhaseResolution, game.PhaseDiscussion) {
		return
	}
	topic := c.nextTopic()
	c.session.BeginRound(topic)

	c.bus.Publish(event.NewRoundAdvancedEvent(c.session.RoomCode(), c.session.Round(), topic))
	c.bus.Publish(event.NewTopicAnnouncedEvent(c.session.RoomCode(), c.session.Round(), topic))
	c.bus.Publish(event.NewPhaseChangedEvent(c.session.RoomCode(), game.PhaseDiscussion.String(),
		"A new round begins."))
	c.startPhaseTimer(game.PhaseDiscussion, c.discussionBudget, c.advanceToVoting)
}

// startPhaseTimer arms the wall-clock budget for a phase. Arming a new
// timer cancels the previous one; a previous timer that already fired is
// harmless because its transition CAS will fail.
func (c *Controller) startPhaseTimer(owner game.Phase, budget time.Duration, fire func()) {
	c.timerMu.Lock()
	if c.timerCancel != nil {
		c.timerCancel()
	}
	timerCtx, cancel := context.WithCancel(c.ctx)
	c.timerCancel = cancel
	c.timerMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-timerCtx.Done():
			return
		case <-time.After(budget):
		}
		if c.session.Phase() != owner {
			return
		}
		c.logger.Debug("phase timer expired",
			"room", c.session.RoomCode(), "phase", owner.String())
		fire()
	}()
}

func (c *Controller) cancelPhaseTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
}

func (c *Controller) eligibleTargets(voterID string) []string {
	var out []string
	for _, id := range c.session.ActivePlayers() {
		if id != voterID {
			out = append(out, id)
		}
	}
	return out
}

func (c *Controller) nextTopic() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return game.RandomTopicExcluding(c.rng, c.session.Topic())
}

func (c *Controller) randDuration(min, max time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return min + time.Duration(c.rng.Int63n(int64(max-min)))
}

func (c *Controller) randIndex(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}

// sleep waits for d or until the controller stops. Returns false when the
// controller stopped first.
func (c *Controller) sleep(d time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
