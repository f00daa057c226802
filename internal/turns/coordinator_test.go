package turns

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/game"
)

// stubCapability speaks on demand with a configurable compose delay.
type stubCapability struct {
	mu           sync.Mutex
	speak        bool
	message      string
	composeDelay time.Duration
	decideCalls  int
}

func (s *stubCapability) ShouldSpeak(_ context.Context, _ agent.DecisionContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decideCalls++
	return s.speak, nil
}

func (s *stubCapability) Compose(_ context.Context, _ agent.DecisionContext) (string, error) {
	s.mu.Lock()
	delay := s.composeDelay
	msg := s.message
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return msg, nil
}

func (s *stubCapability) Vote(_ context.Context, vc agent.VoteContext) (string, error) {
	return vc.Eligible[0], nil
}

func (s *stubCapability) decisions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decideCalls
}

func newTestSession(t *testing.T) *game.Session {
	t.Helper()
	s := game.NewSession("ABC123", "What's the best topping for pizza?", []game.AgentSpec{
		{ID: "Player 1", Persona: "analytical"},
		{ID: "Player 2", Persona: "humorous"},
	})
	if err := s.AddHuman("Player 3"); err != nil {
		t.Fatalf("AddHuman: %v", err)
	}
	return s
}

func fastTimings() Option {
	// debounce, quietPeriod, cooldown, typingMin, typingMax, pacing
	return WithTimings(0, time.Hour, time.Hour, time.Millisecond, 2*time.Millisecond, 0)
}

func newTestCoordinator(t *testing.T, s *game.Session, capability agent.Capability, opts ...Option) *Coordinator {
	t.Helper()
	base := []Option{fastTimings(), WithRand(rand.New(rand.NewSource(1)))}
	c := NewCoordinator(s, capability, append(base, opts...)...)
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, desc string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWaveCommitsAgentMessages(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: true, message: "pineapple obviously"}
	c := newTestCoordinator(t, s, stub)

	c.TriggerWave("")
	waitFor(t, 5*time.Second, func() bool { return s.MessageCount() == 2 },
		"both agents to speak")

	for _, m := range s.ChatLog() {
		if m.Body != "pineapple obviously" {
			t.Errorf("unexpected message %+v", m)
		}
	}
	waitFor(t, time.Second, func() bool { return len(c.Processing()) == 0 },
		"processing set to drain")
}

func TestWaveRespectsDecline(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: false}
	c := newTestCoordinator(t, s, stub)

	c.TriggerWave("")
	waitFor(t, 2*time.Second, func() bool { return stub.decisions() == 2 },
		"both agents to be asked")
	time.Sleep(20 * time.Millisecond)
	if got := s.MessageCount(); got != 0 {
		t.Errorf("MessageCount() = %d after declines, want 0", got)
	}
}

func TestWaveExcludesJustSpokeAgent(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: false}
	c := newTestCoordinator(t, s, stub)

	c.TriggerWave("Player 1")
	waitFor(t, 2*time.Second, func() bool { return stub.decisions() == 1 },
		"one agent to be asked")
	time.Sleep(20 * time.Millisecond)
	if got := stub.decisions(); got != 1 {
		t.Errorf("decisions = %d with one agent excluded, want 1", got)
	}
}

func TestDebounceDropsRapidTriggers(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: false}
	c := newTestCoordinator(t, s, stub, WithTimings(
		time.Hour, time.Hour, 0, time.Millisecond, 2*time.Millisecond, 0))

	c.TriggerWave("")
	c.TriggerWave("")
	c.TriggerWave("")

	waitFor(t, 2*time.Second, func() bool { return stub.decisions() >= 2 },
		"first wave decisions")
	time.Sleep(50 * time.Millisecond)
	if got := stub.decisions(); got != 2 {
		t.Errorf("decisions = %d, want 2 (later triggers debounced)", got)
	}
}

func TestCooldownSuppressesRepeatSpeaker(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: true, message: "hey"}
	c := newTestCoordinator(t, s, stub, WithTimings(
		0, time.Hour, time.Hour, time.Millisecond, 2*time.Millisecond, 0))

	c.TriggerWave("")
	waitFor(t, 5*time.Second, func() bool { return s.MessageCount() == 2 },
		"first wave to commit")

	c.TriggerWave("")
	time.Sleep(50 * time.Millisecond)
	if got := s.MessageCount(); got != 2 {
		t.Errorf("MessageCount() = %d, want 2 (cooldown suppresses repeats)", got)
	}
}

func TestStaleTurnDroppedOnPhaseChange(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: true, message: "too late", composeDelay: 100 * time.Millisecond}
	c := newTestCoordinator(t, s, stub)

	c.TriggerWave("")
	waitFor(t, 2*time.Second, func() bool { return len(c.Processing()) > 0 },
		"turns to be in flight")

	// The discussion timer fires mid-pipeline.
	if !s.AdvancePhase(game.PhaseDiscussion, game.PhaseVoting) {
		t.Fatal("AdvancePhase failed")
	}

	waitFor(t, 2*time.Second, func() bool { return len(c.Processing()) == 0 },
		"in-flight turns to drain")
	if got := s.MessageCount(); got != 0 {
		t.Errorf("MessageCount() = %d, want 0: stale turns must not commit", got)
	}
	if got := s.Phase(); got != game.PhaseVoting {
		t.Errorf("Phase() = %v, want Voting", got)
	}
}

func TestWaveOutsideDiscussionIsNoOp(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(game.PhaseDiscussion, game.PhaseVoting)
	stub := &stubCapability{speak: true, message: "x"}
	c := newTestCoordinator(t, s, stub)

	c.TriggerWave("")
	time.Sleep(50 * time.Millisecond)
	if got := stub.decisions(); got != 0 {
		t.Errorf("decisions = %d during Voting, want 0", got)
	}
}

func TestChatMessageEventTriggersWave(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: false}
	bus := event.NewBus()
	c := newTestCoordinator(t, s, stub, WithBus(bus))
	_ = c

	bus.Publish(event.NewChatMessageEvent("ABC123", "Player 3", "anyone there?"))
	waitFor(t, 2*time.Second, func() bool { return stub.decisions() == 2 },
		"wave triggered by chat event")
}

func TestTypingEventsSurroundTurn(t *testing.T) {
	s := newTestSession(t)
	stub := &stubCapability{speak: true, message: "hi"}
	bus := event.NewBus()

	var mu sync.Mutex
	var typing []bool
	bus.Subscribe("typing.status", func(e event.Event) {
		ts, ok := e.(event.TypingStatusEvent)
		if !ok {
			return
		}
		mu.Lock()
		typing = append(typing, ts.Typing)
		mu.Unlock()
	})

	c := newTestCoordinator(t, s, stub, WithBus(bus))
	c.TriggerWave("Player 2") // single speaker keeps the sequence simple

	waitFor(t, 5*time.Second, func() bool { return s.MessageCount() >= 1 },
		"turn to commit")
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(typing) >= 2
	}, "typing start and stop")

	mu.Lock()
	defer mu.Unlock()
	if !typing[0] || typing[1] {
		t.Errorf("typing sequence = %v, want [true false]", typing)
	}
}
