package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daehan-lim/humanhunter/internal/errors"
)

// Session is the authoritative state for one game instance.
// It is safe for concurrent use; every mutation happens under the session
// mutex, and phase-sensitive writes re-check the phase at commit time.
type Session struct {
	mu       sync.RWMutex
	roomCode string
	phase    Phase
	round    int
	topic    string
	players  map[string]*Player
	chatLog  []Message
	votes    map[string]string

	// pendingSpeakers holds agents authorized to attempt a contribution in
	// the current engagement wave; pendingVoters holds agents that still owe
	// a vote this Voting phase. Both are meaningful only in their owning
	// phase and are reset on phase entry.
	pendingSpeakers map[string]struct{}
	pendingVoters   map[string]struct{}

	lastActivity   time.Time
	startedAt      time.Time
	roundStartedAt time.Time
	outcome        *Outcome
}

// AgentSpec describes one agent to seed into a new session.
type AgentSpec struct {
	ID      string
	Persona string
}

// NewSession creates a session in the Discussion phase of round 1 with the
// given agents pre-seeded. Humans join later through AddHuman.
func NewSession(roomCode, topic string, agents []AgentSpec) *Session {
	now := time.Now()
	s := &Session{
		roomCode:        roomCode,
		phase:           PhaseDiscussion,
		round:           1,
		topic:           topic,
		players:         make(map[string]*Player, len(agents)),
		votes:           make(map[string]string),
		pendingSpeakers: make(map[string]struct{}),
		pendingVoters:   make(map[string]struct{}),
		lastActivity:    now,
		startedAt:       now,
		roundStartedAt:  now,
	}
	for _, a := range agents {
		s.players[a.ID] = &Player{ID: a.ID, Role: RoleAgent, Persona: a.Persona}
	}
	return s
}

// RoomCode returns the session's room identifier.
func (s *Session) RoomCode() string {
	return s.roomCode
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Round returns the current round number.
func (s *Session) Round() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round
}

// Topic returns the current discussion topic.
func (s *Session) Topic() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topic
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// AddHuman adds a human player. The registry gates joins against running
// games; the session itself only refuses terminal sessions and duplicate
// IDs.
func (s *Session) AddHuman(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.IsTerminal() {
		return errors.ErrGameOver
	}
	if _, ok := s.players[playerID]; ok {
		return errors.NewValidationError("player ID already in use").WithField("player_id").WithValue(playerID)
	}
	s.players[playerID] = &Player{ID: playerID, Role: RoleHuman}
	return nil
}

// Player returns a copy of the player record, if present.
func (s *Session) Player(playerID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns copies of all player records, sorted by ID for stable
// output.
func (s *Session) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivePlayers returns the IDs of all non-eliminated players.
func (s *Session) ActivePlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePlayersLocked("")
}

// ActiveAgents returns the IDs of all non-eliminated agents.
func (s *Session) ActiveAgents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePlayersLocked(RoleAgent)
}

// activePlayersLocked returns non-eliminated player IDs, optionally
// filtered by role (zero Role means any). Caller must hold the lock.
func (s *Session) activePlayersLocked(role Role) []string {
	var out []string
	for id, p := range s.players {
		if p.Eliminated {
			continue
		}
		if role != "" && p.Role != role {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AdvancePhase transitions the session from one phase to another. It is the
// compare-and-swap at the heart of the concurrency model: the transition
// commits only if the current phase still equals from, so racing writers
// (the wall-clock timer vs. the all-voted trigger) cannot double-fire.
// On a committed transition the collections owned by the entered phase are
// reset.
func (s *Session) AdvancePhase(from, to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != from {
		return false
	}
	s.phase = to

	switch to {
	case PhaseVoting:
		s.pendingSpeakers = make(map[string]struct{})
		s.votes = make(map[string]string)
		s.pendingVoters = make(map[string]struct{})
		for _, id := range s.activePlayersLocked(RoleAgent) {
			s.pendingVoters[id] = struct{}{}
		}
	case PhaseDiscussion:
		s.pendingSpeakers = make(map[string]struct{})
		s.pendingVoters = make(map[string]struct{})
	case PhaseResolution, PhaseGameOver:
		s.pendingSpeakers = make(map[string]struct{})
		s.pendingVoters = make(map[string]struct{})
	}
	return true
}

// BeginRound starts the next round: increments the round counter, installs
// a fresh topic, and clears the previous round's votes. It only applies
// while in Discussion (i.e. immediately after a Resolution→Discussion
// transition).
func (s *Session) BeginRound(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseDiscussion {
		return false
	}
	s.round++
	s.topic = topic
	s.votes = make(map[string]string)
	s.roundStartedAt = time.Now()
	s.lastActivity = time.Now()
	return true
}

// AppendMessage commits a chat message. The write is refused unless the
// session is still in Discussion. This is the last of the turn pipeline's
// phase guards, and the one that actually protects the chat log.
func (s *Session) AppendMessage(sender, body string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseDiscussion {
		return Message{}, errors.ErrWrongPhase
	}
	p, ok := s.players[sender]
	if !ok {
		return Message{}, errors.ErrPlayerNotFound
	}
	if p.Eliminated {
		return Message{}, errors.ErrPlayerEliminated
	}

	msg := Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Body:   body,
		SentAt: time.Now(),
	}
	s.chatLog = append(s.chatLog, msg)
	s.lastActivity = msg.SentAt
	return msg, nil
}

// ChatLog returns a copy of the full chat log in append order.
func (s *Session) ChatLog() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.chatLog))
	copy(out, s.chatLog)
	return out
}

// ChatTail returns a copy of at most n most recent messages in append order.
func (s *Session) ChatTail(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.chatLog) {
		n = len(s.chatLog)
	}
	out := make([]Message, n)
	copy(out, s.chatLog[len(s.chatLog)-n:])
	return out
}

// MessageCount returns the chat log length.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chatLog)
}

// SpokenCount returns how many chat messages the player has committed.
func (s *Session) SpokenCount(playerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.chatLog {
		if m.Sender == playerID {
			count++
		}
	}
	return count
}

// LastSpeaker returns the sender of the most recent message, or "" if the
// chat log is empty.
func (s *Session) LastSpeaker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chatLog) == 0 {
		return ""
	}
	return s.chatLog[len(s.chatLog)-1].Sender
}

// QuietFor returns the elapsed time since the last chat-log append.
func (s *Session) QuietFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// CastVote records a vote. Votes are write-once per voter per Voting phase,
// and eligibility is enforced uniformly at write time regardless of whether
// the voter is a human or an agent: the voter must be an active player, and
// the target must be an active player other than the voter.
func (s *Session) CastVote(voter, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseVoting {
		return errors.ErrWrongPhase
	}
	vp, ok := s.players[voter]
	if !ok {
		return errors.ErrPlayerNotFound
	}
	if vp.Eliminated {
		return errors.ErrPlayerEliminated
	}
	if _, voted := s.votes[voter]; voted {
		return errors.ErrAlreadyVoted
	}
	tp, ok := s.players[target]
	if !ok || tp.Eliminated || target == voter {
		return errors.ErrIneligibleTarget
	}

	s.votes[voter] = target
	delete(s.pendingVoters, voter)
	return nil
}

// Votes returns a copy of the current vote map.
func (s *Session) Votes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.votes))
	for k, v := range s.votes {
		out[k] = v
	}
	return out
}

// AllVoted reports whether every non-eliminated player has a vote entry.
func (s *Session) AllVoted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, p := range s.players {
		if !p.Eliminated {
			active++
		}
	}
	return active > 0 && len(s.votes) >= active
}

// PendingVoters returns the agents that still owe a vote this phase.
func (s *Session) PendingVoters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.pendingVoters))
	for id := range s.pendingVoters {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetPendingSpeakers replaces the set of agents authorized to attempt a
// contribution in the current engagement wave.
func (s *Session) SetPendingSpeakers(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingSpeakers = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.pendingSpeakers[id] = struct{}{}
	}
}

// ClearPendingSpeaker removes one agent from the pending-speaker set.
func (s *Session) ClearPendingSpeaker(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingSpeakers, id)
}

// PendingSpeakers returns the agents authorized to speak this wave.
func (s *Session) PendingSpeakers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.pendingSpeakers))
	for id := range s.pendingSpeakers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Eliminate marks a player eliminated. The flag is monotonic; eliminating
// an already-eliminated or unknown player returns false.
func (s *Session) Eliminate(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.Eliminated {
		return false
	}
	p.Eliminated = true
	delete(s.votes, playerID)
	delete(s.pendingVoters, playerID)
	delete(s.pendingSpeakers, playerID)
	return true
}

// EliminatedCount returns how many players of the given role are eliminated.
func (s *Session) EliminatedCount(role Role) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.players {
		if p.Role == role && p.Eliminated {
			count++
		}
	}
	return count
}

// SetOutcome records the resolution outcome. It is write-once; a second
// call is refused, which backs the controller's resolution idempotence.
func (s *Session) SetOutcome(o Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome != nil {
		return false
	}
	copied := o
	if o.VoteCounts != nil {
		copied.VoteCounts = make(map[string]int, len(o.VoteCounts))
		for k, v := range o.VoteCounts {
			copied.VoteCounts[k] = v
		}
	}
	s.outcome = &copied
	return true
}

// Outcome returns a copy of the recorded outcome, or nil before resolution.
func (s *Session) Outcome() *Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.outcome == nil {
		return nil
	}
	copied := *s.outcome
	if s.outcome.VoteCounts != nil {
		copied.VoteCounts = make(map[string]int, len(s.outcome.VoteCounts))
		for k, v := range s.outcome.VoteCounts {
			copied.VoteCounts[k] = v
		}
	}
	return &copied
}
