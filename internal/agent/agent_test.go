package agent

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/daehan-lim/humanhunter/internal/logging"
)

// fakeClient returns scripted completions in order, then repeats the last.
type fakeClient struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeClient) Complete(_ context.Context, messages []ChatMessage) (string, error) {
	f.calls++
	var all []string
	for _, m := range messages {
		all = append(all, m.Content)
	}
	f.prompts = append(f.prompts, strings.Join(all, "\n"))
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func newModel(t *testing.T, client ChatClient) *ModelCapability {
	t.Helper()
	return NewModelCapability(client, logging.NopLogger(), rand.New(rand.NewSource(1)), 3)
}

func testDecisionContext() DecisionContext {
	return DecisionContext{
		AgentID: "Player 2",
		Persona: "analytical",
		Topic:   "What's the best topping for pizza?",
		Round:   1,
		ChatTail: []ChatLine{
			{Sender: "Player 1", Body: "pineapple all the way"},
			{Sender: "Player 3", Body: "no way"},
		},
		Spoken:    1,
		Total:     2,
		LastAgent: "Player 3",
		QuietFor:  4 * time.Second,
	}
}

func TestShouldSpeakDecodesDecision(t *testing.T) {
	client := &fakeClient{responses: []string{`{"should_respond": true, "reason": "asked directly"}`}}
	m := newModel(t, client)

	speak, err := m.ShouldSpeak(context.Background(), testDecisionContext())
	if err != nil {
		t.Fatalf("ShouldSpeak: %v", err)
	}
	if !speak {
		t.Error("ShouldSpeak = false, want true")
	}
}

func TestShouldSpeakHandlesFencedJSON(t *testing.T) {
	client := &fakeClient{responses: []string{"```json\n{\"should_respond\": true, \"reason\": \"x\"}\n```"}}
	m := newModel(t, client)

	speak, err := m.ShouldSpeak(context.Background(), testDecisionContext())
	if err != nil {
		t.Fatalf("ShouldSpeak: %v", err)
	}
	if !speak {
		t.Error("ShouldSpeak = false for fenced JSON, want true")
	}
}

func TestShouldSpeakFallbackNeverErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	m := newModel(t, client)

	// The fallback is probabilistic; the contract under test is that a
	// broken model never surfaces an error from the decision step.
	for i := 0; i < 20; i++ {
		if _, err := m.ShouldSpeak(context.Background(), testDecisionContext()); err != nil {
			t.Fatalf("ShouldSpeak with failing client: %v", err)
		}
	}
}

func TestComposeStripsLeakedNamePrefix(t *testing.T) {
	client := &fakeClient{responses: []string{"Player 2: honestly pineapple slaps"}}
	m := newModel(t, client)

	msg, err := m.Compose(context.Background(), testDecisionContext())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg != "honestly pineapple slaps" {
		t.Errorf("Compose = %q, want prefix stripped", msg)
	}
}

func TestComposeFallsBackToFiller(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	m := newModel(t, client)

	msg, err := m.Compose(context.Background(), testDecisionContext())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg != fallbackMessage {
		t.Errorf("Compose = %q, want %q", msg, fallbackMessage)
	}
}

func TestComposeEmptyOutputBecomesFiller(t *testing.T) {
	client := &fakeClient{responses: []string{"   "}}
	m := newModel(t, client)

	msg, err := m.Compose(context.Background(), testDecisionContext())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if msg != fallbackMessage {
		t.Errorf("Compose = %q, want %q", msg, fallbackMessage)
	}
}

func TestVoteAcceptsEligibleTarget(t *testing.T) {
	client := &fakeClient{responses: []string{`{"vote": "Player 1", "reason": "too fast"}`}}
	m := newModel(t, client)

	target, err := m.Vote(context.Background(), VoteContext{
		AgentID:  "Player 2",
		Eligible: []string{"Player 1", "Player 3"},
	})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if target != "Player 1" {
		t.Errorf("Vote = %q, want %q", target, "Player 1")
	}
	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1", client.calls)
	}
}

func TestVoteRetriesWithStricterPrompt(t *testing.T) {
	client := &fakeClient{responses: []string{
		`i think it's Player 1`,
		`{"vote": "Player 9", "reason": "x"}`,
		`{"vote": "Player 3", "reason": "x"}`,
	}}
	m := newModel(t, client)

	target, err := m.Vote(context.Background(), VoteContext{
		AgentID:  "Player 2",
		Eligible: []string{"Player 1", "Player 3"},
	})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if target != "Player 3" {
		t.Errorf("Vote = %q, want %q after retries", target, "Player 3")
	}
	if client.calls != 3 {
		t.Fatalf("client calls = %d, want 3", client.calls)
	}
	if !strings.Contains(client.prompts[2], "Previous response invalid") {
		t.Error("retry prompt missing stricter instruction")
	}
}

func TestVoteHonorsConfiguredRetryCount(t *testing.T) {
	client := &fakeClient{responses: []string{"nope"}}
	m := NewModelCapability(client, logging.NopLogger(), rand.New(rand.NewSource(1)), 1)

	eligible := []string{"Player 1", "Player 3"}
	target, err := m.Vote(context.Background(), VoteContext{AgentID: "Player 2", Eligible: eligible})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1 with retries capped at 1", client.calls)
	}
	if target != "Player 1" && target != "Player 3" {
		t.Errorf("fallback vote %q not in eligible set", target)
	}
}

func TestVoteExhaustedRetriesFallsBackToRandomEligible(t *testing.T) {
	client := &fakeClient{responses: []string{"nope", "nope", "nope"}}
	m := newModel(t, client)

	eligible := []string{"Player 1", "Player 3", "Player 4"}
	target, err := m.Vote(context.Background(), VoteContext{AgentID: "Player 2", Eligible: eligible})
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	found := false
	for _, id := range eligible {
		if target == id {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback vote %q not in eligible set %v", target, eligible)
	}
}

func TestVoteNoEligibleTargets(t *testing.T) {
	m := newModel(t, &fakeClient{responses: []string{"{}"}})

	if _, err := m.Vote(context.Background(), VoteContext{AgentID: "Player 2"}); err == nil {
		t.Error("Vote with no eligible targets succeeded, want error")
	}
}

func TestSpeakPromptIncludesContext(t *testing.T) {
	client := &fakeClient{responses: []string{`{"should_respond": false, "reason": "quiet"}`}}
	m := newModel(t, client)

	dc := testDecisionContext()
	if _, err := m.ShouldSpeak(context.Background(), dc); err != nil {
		t.Fatalf("ShouldSpeak: %v", err)
	}

	prompt := client.prompts[0]
	for _, want := range []string{dc.AgentID, dc.Persona, dc.Topic, "Player 1: pineapple all the way"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("speak prompt missing %q", want)
		}
	}
}

func TestScriptedCapability(t *testing.T) {
	s := NewScriptedCapability(1.0, rand.New(rand.NewSource(7)))

	speak, err := s.ShouldSpeak(context.Background(), DecisionContext{})
	if err != nil || !speak {
		t.Errorf("ShouldSpeak = (%v, %v), want (true, nil) at chance 1.0", speak, err)
	}

	msg, err := s.Compose(context.Background(), DecisionContext{})
	if err != nil || msg == "" {
		t.Errorf("Compose = (%q, %v), want non-empty line", msg, err)
	}

	target, err := s.Vote(context.Background(), VoteContext{
		AgentID:  "Player 2",
		Eligible: []string{"Player 1"},
	})
	if err != nil || target != "Player 1" {
		t.Errorf("Vote = (%q, %v), want Player 1", target, err)
	}
}
