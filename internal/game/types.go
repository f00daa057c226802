package game

import "time"

// Phase represents the lifecycle phase of a session.
type Phase string

const (
	// PhaseDiscussion indicates players are chatting about the topic.
	PhaseDiscussion Phase = "Discussion"

	// PhaseVoting indicates players are casting votes.
	PhaseVoting Phase = "Voting"

	// PhaseResolution indicates votes are being tallied into an outcome.
	PhaseResolution Phase = "Resolution"

	// PhaseGameOver indicates the session is terminal and read-only.
	PhaseGameOver Phase = "GameOver"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if this phase represents a final state.
func (p Phase) IsTerminal() bool {
	return p == PhaseGameOver
}

// Role describes what kind of participant a player is.
type Role string

const (
	// RoleHuman indicates a human participant.
	RoleHuman Role = "human"

	// RoleAgent indicates an automated, model-driven participant.
	RoleAgent Role = "agent"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Winner identifies the side that won a session.
type Winner string

const (
	// WinnerHumans indicates the human side won.
	WinnerHumans Winner = "human"

	// WinnerAgents indicates the agent side won.
	WinnerAgents Winner = "agent"
)

// String returns the string representation of the winner.
func (w Winner) String() string {
	return string(w)
}

// Ruleset selects the win-condition policy applied at resolution.
type Ruleset string

const (
	// RulesetSuspect ends the game on the first resolution: the suspect's
	// revealed role decides the winner outright.
	RulesetSuspect Ruleset = "suspect"

	// RulesetElimination marks the suspect eliminated and continues play.
	// The game ends when a human is voted out (agents win) or when the
	// configured quota of agents has been eliminated (humans win).
	RulesetElimination Ruleset = "elimination"
)

// IsValid returns true if this is a recognized ruleset value.
func (r Ruleset) IsValid() bool {
	switch r {
	case RulesetSuspect, RulesetElimination:
		return true
	default:
		return false
	}
}

// Player is one participant in a session. A player is never deleted once
// the game has started; elimination flips the Eliminated flag instead.
type Player struct {
	ID         string // Human-readable, unique within the session (e.g. "Player 3")
	Role       Role
	Persona    string // Descriptive trait; agents only
	Eliminated bool
}

// Message is one committed chat-log entry. Messages are immutable once
// appended.
type Message struct {
	ID     string
	Sender string
	Body   string
	SentAt time.Time
}

// Outcome is the result of a resolution: the suspect selected by vote
// tally, that player's revealed role, and the winning side.
type Outcome struct {
	Suspect    string
	Role       Role
	Winner     Winner
	VoteCounts map[string]int
}
