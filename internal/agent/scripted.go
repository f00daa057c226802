package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// scriptedLines are the canned contributions used when no model credentials
// are configured. They are intentionally bland; a keyless server still runs
// a full game, it just doesn't run an interesting one.
var scriptedLines = []string{
	"haha yeah",
	"good question tbh",
	"i was just thinking that",
	"hmm not sure",
	"lol same",
	"ok but hear me out",
	"thats fair",
	"wait really?",
}

// ScriptedCapability produces deterministic-ish behavior without a model.
// It speaks with a fixed probability, picks a canned line, and votes for a
// random eligible target.
type ScriptedCapability struct {
	SpeakChance float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScriptedCapability creates a scripted capability with the given
// speak probability.
func NewScriptedCapability(speakChance float64, rng *rand.Rand) *ScriptedCapability {
	return &ScriptedCapability{SpeakChance: speakChance, rng: rng}
}

// ShouldSpeak flips a weighted coin.
func (s *ScriptedCapability) ShouldSpeak(_ context.Context, _ DecisionContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.SpeakChance, nil
}

// Compose returns a canned line.
func (s *ScriptedCapability) Compose(_ context.Context, _ DecisionContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scriptedLines[s.rng.Intn(len(scriptedLines))], nil
}

// Vote picks a random eligible target.
func (s *ScriptedCapability) Vote(_ context.Context, vc VoteContext) (string, error) {
	if len(vc.Eligible) == 0 {
		return "", fmt.Errorf("no eligible vote targets for %s", vc.AgentID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return vc.Eligible[s.rng.Intn(len(vc.Eligible))], nil
}
