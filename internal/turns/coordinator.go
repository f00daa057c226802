// Package turns coordinates agent participation during Discussion. Agents
// speak in "engagement waves": a wave picks candidate agents, fans out their
// speak/hold decisions, and runs a turn pipeline for each agent that chose
// to speak. Every side effect re-checks the phase before committing, so a
// wave overrun by the discussion timer dies quietly instead of writing into
// a Voting-phase chat log.
package turns

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/logging"
)

// Coordinator drives agent turns for one session.
type Coordinator struct {
	session    *game.Session
	capability agent.Capability
	bus        *event.Bus
	logger     *logging.Logger

	debounce    time.Duration
	quietPeriod time.Duration
	cooldown    time.Duration
	typingMin   time.Duration
	typingMax   time.Duration
	pacing      time.Duration
	contextTail int

	// sem bounds concurrent capability calls so slow model responses
	// cannot pile up unbounded goroutines.
	sem chan struct{}

	// waveMu is the room-scoped gate around wave scheduling. Holding it
	// through candidate selection and the decision fan-out prevents two
	// overlapping waves from double-scheduling the same agent.
	waveMu sync.Mutex

	// stateMu guards processing, lastTrigger, and lastSpoke.
	stateMu     sync.Mutex
	processing  map[string]struct{}
	lastTrigger time.Time
	lastSpoke   map[string]time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator for the given session.
func NewCoordinator(session *game.Session, capability agent.Capability, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:     session,
		capability:  capability,
		bus:         event.NewBus(),
		logger:      logging.NopLogger(),
		debounce:    2 * time.Second,
		quietPeriod: 10 * time.Second,
		cooldown:    10 * time.Second,
		typingMin:   time.Second,
		typingMax:   2 * time.Second,
		pacing:      500 * time.Millisecond,
		contextTail: 8,
		sem:         make(chan struct{}, 10),
		processing:  make(map[string]struct{}),
		lastSpoke:   make(map[string]time.Time),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start wires the coordinator to the bus and begins the quiet-period
// watcher. Chat messages and Discussion entries trigger waves; the watcher
// covers the lulls in between.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.bus.Subscribe("chat.message", func(e event.Event) {
		msg, ok := e.(event.ChatMessageEvent)
		if !ok {
			return
		}
		c.scheduleWave(c.pacing, msg.Sender)
	})
	c.bus.Subscribe("phase.changed", func(e event.Event) {
		pc, ok := e.(event.PhaseChangedEvent)
		if !ok || pc.Phase != game.PhaseDiscussion.String() {
			return
		}
		c.scheduleWave(0, "")
	})

	c.wg.Add(1)
	go c.quietWatcher()
}

// Stop cancels in-flight turns and the quiet watcher. Turns already past
// their last guard may still commit; the session's phase check is the
// final arbiter.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// TriggerWave requests an engagement wave, excluding one agent (the player
// that just spoke; "" excludes nobody). Triggers within the debounce window
// of the previous one are dropped.
func (c *Coordinator) TriggerWave(exclude string) {
	c.stateMu.Lock()
	if time.Since(c.lastTrigger) < c.debounce {
		c.stateMu.Unlock()
		return
	}
	c.lastTrigger = time.Now()
	c.stateMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runWave(exclude)
	}()
}

// scheduleWave triggers a wave after a pacing delay.
func (c *Coordinator) scheduleWave(delay time.Duration, exclude string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if delay > 0 && !c.sleep(delay) {
			return
		}
		c.TriggerWave(exclude)
	}()
}

// quietWatcher periodically nudges the room when the chat has gone silent.
// The check interval is jittered so agents don't wake on a metronome.
func (c *Coordinator) quietWatcher() {
	defer c.wg.Done()
	for {
		if !c.sleep(c.randDuration(8*time.Second, 15*time.Second)) {
			return
		}
		if c.session.Phase() != game.PhaseDiscussion {
			continue
		}
		if c.session.QuietFor() >= c.quietPeriod {
			c.logger.Debug("quiet period elapsed, triggering wave",
				"room", c.session.RoomCode(), "quiet_for", c.session.QuietFor())
			c.TriggerWave("")
		}
	}
}

// runWave selects candidates, fans out their decisions, and launches a
// turn for each agent that chose to speak. The wave gate is held until all
// decisions are in.
func (c *Coordinator) runWave(exclude string) {
	c.waveMu.Lock()
	defer c.waveMu.Unlock()

	if c.session.Phase() != game.PhaseDiscussion {
		return
	}

	candidates := c.candidates(exclude)
	if len(candidates) == 0 {
		return
	}
	c.session.SetPendingSpeakers(candidates)

	var wg sync.WaitGroup
	responders := make(chan string, len(candidates))
	for _, id := range candidates {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			defer c.session.ClearPendingSpeaker(agentID)
			if c.decide(agentID) {
				responders <- agentID
			}
		}(id)
	}
	wg.Wait()
	close(responders)

	for agentID := range responders {
		c.markProcessing(agentID)
		c.wg.Add(1)
		go func(id string) {
			defer c.wg.Done()
			c.runTurn(id)
		}(agentID)
	}
}

// candidates returns active agents that are not mid-turn, not excluded,
// and not inside their own message cooldown.
func (c *Coordinator) candidates(exclude string) []string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	var out []string
	for _, id := range c.session.ActiveAgents() {
		if id == exclude {
			continue
		}
		if _, busy := c.processing[id]; busy {
			continue
		}
		if last, ok := c.lastSpoke[id]; ok && time.Since(last) < c.cooldown {
			continue
		}
		out = append(out, id)
	}
	return out
}

// decide asks the capability whether the agent wants to speak right now.
func (c *Coordinator) decide(agentID string) bool {
	if !c.acquire() {
		return false
	}
	defer c.release()

	speak, err := c.capability.ShouldSpeak(c.ctx, c.decisionContext(agentID))
	if err != nil {
		c.logger.Debug("speak decision errored", "agent", agentID, "error", err)
		return false
	}
	return speak
}

// runTurn is the per-agent pipeline: generate, typing delay, commit. The
// phase is re-checked before the typing indicator, before the delay, and
// the session itself re-checks at append time. A turn that loses any guard
// leaves no trace.
func (c *Coordinator) runTurn(agentID string) {
	defer c.unmarkProcessing(agentID)

	if c.session.Phase() != game.PhaseDiscussion {
		return
	}
	c.bus.Publish(event.NewTypingStatusEvent(c.session.RoomCode(), agentID, true))
	defer c.bus.Publish(event.NewTypingStatusEvent(c.session.RoomCode(), agentID, false))

	if !c.acquire() {
		return
	}
	body, err := c.capability.Compose(c.ctx, c.decisionContext(agentID))
	c.release()
	if err != nil || body == "" {
		return
	}

	if c.session.Phase() != game.PhaseDiscussion {
		return
	}
	if !c.sleep(c.randDuration(c.typingMin, c.typingMax)) {
		return
	}

	msg, err := c.session.AppendMessage(agentID, body)
	if err != nil {
		// Usually the phase moved on mid-delay; an expected race outcome.
		c.logger.Debug("turn dropped at commit", "agent", agentID, "error", err)
		return
	}

	c.stateMu.Lock()
	c.lastSpoke[agentID] = time.Now()
	c.stateMu.Unlock()

	c.bus.Publish(event.NewChatMessageEvent(c.session.RoomCode(), msg.Sender, msg.Body))
}

func (c *Coordinator) decisionContext(agentID string) agent.DecisionContext {
	tail := c.session.ChatTail(c.contextTail)
	lines := make([]agent.ChatLine, len(tail))
	for i, m := range tail {
		lines[i] = agent.ChatLine{Sender: m.Sender, Body: m.Body}
	}

	persona := ""
	if p, ok := c.session.Player(agentID); ok {
		persona = p.Persona
	}
	return agent.DecisionContext{
		AgentID:   agentID,
		Persona:   persona,
		Topic:     c.session.Topic(),
		Round:     c.session.Round(),
		ChatTail:  lines,
		Spoken:    c.session.SpokenCount(agentID),
		Total:     c.session.MessageCount(),
		LastAgent: c.session.LastSpeaker(),
		QuietFor:  c.session.QuietFor(),
	}
}

// Processing returns the agents with an outstanding turn, for inspection.
func (c *Coordinator) Processing() []string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	out := make([]string, 0, len(c.processing))
	for id := range c.processing {
		out = append(out, id)
	}
	return out
}

func (c *Coordinator) markProcessing(agentID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.processing[agentID] = struct{}{}
}

func (c *Coordinator) unmarkProcessing(agentID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	delete(c.processing, agentID)
}

// acquire takes a worker slot, failing if the coordinator stops first.
func (c *Coordinator) acquire() bool {
	select {
	case c.sem <- struct{}{}:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Coordinator) release() {
	<-c.sem
}

func (c *Coordinator) randDuration(min, max time.Duration) time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	if max <= min {
		return min
	}
	return min + time.Duration(c.rng.Int63n(int64(max-min)))
}

func (c *Coordinator) sleep(d time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
