// Package agent implements the model-driven participants: deciding whether
// to speak, generating chat messages, and casting votes. The package treats
// the model as an unreliable external capability; every model output passes
// a decode-or-fallback boundary so a malformed completion degrades into a
// safe default rather than an error surfaced to the game.
package agent

import (
	"context"
	"time"
)

// DecisionContext carries everything a capability may consider when an
// agent decides whether to speak or what to say.
type DecisionContext struct {
	AgentID   string
	Persona   string
	Topic     string
	Round     int
	ChatTail  []ChatLine
	Spoken    int    // messages this agent has sent
	Total     int    // messages in the whole chat log
	LastAgent string // sender of the most recent message, "" if none
	QuietFor  time.Duration
}

// ChatLine is one chat message as shown to a capability.
type ChatLine struct {
	Sender string
	Body   string
}

// VoteContext carries what a capability may consider when casting a vote.
type VoteContext struct {
	AgentID  string
	ChatLog  []ChatLine
	Eligible []string // active players other than the voter
}

// Capability produces agent behavior. Implementations must be safe for
// concurrent use; the turn coordinator calls them from worker goroutines.
type Capability interface {
	// ShouldSpeak decides whether the agent contributes right now.
	ShouldSpeak(ctx context.Context, dc DecisionContext) (bool, error)

	// Compose produces the agent's chat message.
	Compose(ctx context.Context, dc DecisionContext) (string, error)

	// Vote returns the ID of the player the agent votes for. The returned
	// ID must come from dc.Eligible; callers validate and retry otherwise.
	Vote(ctx context.Context, vc VoteContext) (string, error)
}
