package game

import (
	"testing"

	"github.com/daehan-lim/humanhunter/internal/errors"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("ABC123", "What's your unpopular opinion?", []AgentSpec{
		{ID: "Player 1", Persona: "analytical"},
		{ID: "Player 2", Persona: "humorous"},
		{ID: "Player 4", Persona: "inquisitive"},
	})
	if err := s.AddHuman("Player 3"); err != nil {
		t.Fatalf("AddHuman: %v", err)
	}
	return s
}

func TestNewSessionStartsInDiscussion(t *testing.T) {
	s := newTestSession(t)

	if got := s.Phase(); got != PhaseDiscussion {
		t.Errorf("Phase() = %v, want %v", got, PhaseDiscussion)
	}
	if got := s.Round(); got != 1 {
		t.Errorf("Round() = %d, want 1", got)
	}
	if got := len(s.Players()); got != 4 {
		t.Errorf("len(Players()) = %d, want 4", got)
	}
}

func TestAddHumanAfterGameOver(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseGameOver)

	if err := s.AddHuman("Player 5"); !errors.Is(err, errors.ErrGameOver) {
		t.Errorf("AddHuman after game over = %v, want ErrGameOver", err)
	}
}

func TestAddHumanDuplicateID(t *testing.T) {
	s := newTestSession(t)

	if err := s.AddHuman("Player 3"); err == nil {
		t.Error("AddHuman with duplicate ID succeeded, want error")
	}
}

func TestAdvancePhaseCAS(t *testing.T) {
	s := newTestSession(t)

	if !s.AdvancePhase(PhaseDiscussion, PhaseVoting) {
		t.Fatal("first AdvancePhase(Discussion, Voting) = false, want true")
	}
	// Second writer with a stale expectation must lose.
	if s.AdvancePhase(PhaseDiscussion, PhaseVoting) {
		t.Error("stale AdvancePhase(Discussion, Voting) = true, want false")
	}
	if got := s.Phase(); got != PhaseVoting {
		t.Errorf("Phase() = %v, want %v", got, PhaseVoting)
	}
}

func TestAdvancePhaseToVotingResetsVoteState(t *testing.T) {
	s := newTestSession(t)

	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	pending := s.PendingVoters()
	if len(pending) != 3 {
		t.Fatalf("len(PendingVoters()) = %d, want 3 agents", len(pending))
	}
	for _, id := range pending {
		if id == "Player 3" {
			t.Error("human appears in PendingVoters()")
		}
	}
	if len(s.Votes()) != 0 {
		t.Errorf("Votes() not empty on Voting entry: %v", s.Votes())
	}
}

func TestAppendMessageOrder(t *testing.T) {
	s := newTestSession(t)

	bodies := []string{"hello", "anyone here?", "pineapple, obviously"}
	for _, b := range bodies {
		if _, err := s.AppendMessage("Player 3", b); err != nil {
			t.Fatalf("AppendMessage(%q): %v", b, err)
		}
	}

	log := s.ChatLog()
	if len(log) != len(bodies) {
		t.Fatalf("len(ChatLog()) = %d, want %d", len(log), len(bodies))
	}
	for i, m := range log {
		if m.Body != bodies[i] {
			t.Errorf("ChatLog()[%d].Body = %q, want %q", i, m.Body, bodies[i])
		}
		if m.ID == "" {
			t.Errorf("ChatLog()[%d].ID is empty", i)
		}
	}
}

func TestAppendMessageOutsideDiscussion(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	if _, err := s.AppendMessage("Player 3", "late"); !errors.Is(err, errors.ErrWrongPhase) {
		t.Errorf("AppendMessage during Voting = %v, want ErrWrongPhase", err)
	}
	if s.MessageCount() != 0 {
		t.Error("refused message was still committed")
	}
}

func TestAppendMessageEliminatedSender(t *testing.T) {
	s := newTestSession(t)
	s.Eliminate("Player 2")

	if _, err := s.AppendMessage("Player 2", "still here"); !errors.Is(err, errors.ErrPlayerEliminated) {
		t.Errorf("AppendMessage from eliminated player = %v, want ErrPlayerEliminated", err)
	}
}

func TestChatTail(t *testing.T) {
	s := newTestSession(t)
	for _, b := range []string{"a", "b", "c", "d"} {
		s.AppendMessage("Player 3", b)
	}

	tail := s.ChatTail(2)
	if len(tail) != 2 || tail[0].Body != "c" || tail[1].Body != "d" {
		t.Errorf("ChatTail(2) = %v, want last two in order", tail)
	}
	if got := len(s.ChatTail(10)); got != 4 {
		t.Errorf("len(ChatTail(10)) = %d, want 4", got)
	}
}

func TestCastVoteWriteOnce(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	if err := s.CastVote("Player 3", "Player 1"); err != nil {
		t.Fatalf("first CastVote: %v", err)
	}
	if err := s.CastVote("Player 3", "Player 2"); !errors.Is(err, errors.ErrAlreadyVoted) {
		t.Errorf("second CastVote = %v, want ErrAlreadyVoted", err)
	}
	if got := s.Votes()["Player 3"]; got != "Player 1" {
		t.Errorf("recorded vote = %q, want first target %q", got, "Player 1")
	}
}

func TestCastVoteEligibility(t *testing.T) {
	s := newTestSession(t)
	s.Eliminate("Player 4")
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	tests := []struct {
		name    string
		voter   string
		target  string
		wantErr error
	}{
		{"self vote", "Player 3", "Player 3", errors.ErrIneligibleTarget},
		{"eliminated target", "Player 3", "Player 4", errors.ErrIneligibleTarget},
		{"unknown target", "Player 3", "Player 9", errors.ErrIneligibleTarget},
		{"unknown voter", "Player 9", "Player 1", errors.ErrPlayerNotFound},
		{"eliminated voter", "Player 4", "Player 1", errors.ErrPlayerEliminated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.CastVote(tt.voter, tt.target); !errors.Is(err, tt.wantErr) {
				t.Errorf("CastVote(%q, %q) = %v, want %v", tt.voter, tt.target, err, tt.wantErr)
			}
		})
	}
}

func TestCastVoteOutsideVoting(t *testing.T) {
	s := newTestSession(t)

	if err := s.CastVote("Player 3", "Player 1"); !errors.Is(err, errors.ErrWrongPhase) {
		t.Errorf("CastVote during Discussion = %v, want ErrWrongPhase", err)
	}
}

func TestAllVoted(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	s.CastVote("Player 1", "Player 3")
	s.CastVote("Player 2", "Player 3")
	s.CastVote("Player 3", "Player 1")
	if s.AllVoted() {
		t.Error("AllVoted() = true with one voter outstanding")
	}
	s.CastVote("Player 4", "Player 3")
	if !s.AllVoted() {
		t.Error("AllVoted() = false after every active player voted")
	}
	if got := len(s.PendingVoters()); got != 0 {
		t.Errorf("len(PendingVoters()) = %d after all agents voted, want 0", got)
	}
}

func TestEliminateIsMonotonic(t *testing.T) {
	s := newTestSession(t)

	if !s.Eliminate("Player 1") {
		t.Fatal("first Eliminate = false, want true")
	}
	if s.Eliminate("Player 1") {
		t.Error("second Eliminate = true, want false")
	}
	if s.Eliminate("Player 9") {
		t.Error("Eliminate of unknown player = true, want false")
	}
	if got := s.EliminatedCount(RoleAgent); got != 1 {
		t.Errorf("EliminatedCount(RoleAgent) = %d, want 1", got)
	}
}

func TestEliminatedExcludedFromActiveSets(t *testing.T) {
	s := newTestSession(t)
	s.Eliminate("Player 2")

	for _, id := range s.ActiveAgents() {
		if id == "Player 2" {
			t.Error("eliminated agent listed in ActiveAgents()")
		}
	}
	if got := len(s.ActivePlayers()); got != 3 {
		t.Errorf("len(ActivePlayers()) = %d, want 3", got)
	}
}

func TestSetOutcomeWriteOnce(t *testing.T) {
	s := newTestSession(t)

	first := Outcome{Suspect: "Player 3", Role: RoleHuman, Winner: WinnerAgents, VoteCounts: map[string]int{"Player 3": 3}}
	if !s.SetOutcome(first) {
		t.Fatal("first SetOutcome = false, want true")
	}
	if s.SetOutcome(Outcome{Suspect: "Player 1", Role: RoleAgent, Winner: WinnerHumans}) {
		t.Error("second SetOutcome = true, want false")
	}

	got := s.Outcome()
	if got == nil || got.Suspect != "Player 3" || got.Winner != WinnerAgents {
		t.Errorf("Outcome() = %+v, want first recorded outcome", got)
	}

	// Mutating the returned copy must not leak back.
	got.VoteCounts["Player 3"] = 99
	if s.Outcome().VoteCounts["Player 3"] != 3 {
		t.Error("Outcome() returned shared vote-count map")
	}
}

func TestBeginRound(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)
	s.CastVote("Player 3", "Player 1")
	s.AdvancePhase(PhaseVoting, PhaseResolution)
	s.AdvancePhase(PhaseResolution, PhaseDiscussion)

	if !s.BeginRound("What's your favorite movie and why?") {
		t.Fatal("BeginRound = false, want true")
	}
	if got := s.Round(); got != 2 {
		t.Errorf("Round() = %d, want 2", got)
	}
	if got := s.Topic(); got != "What's your favorite movie and why?" {
		t.Errorf("Topic() = %q", got)
	}
	if len(s.Votes()) != 0 {
		t.Error("votes carried over into the new round")
	}
}

func TestBeginRoundOutsideDiscussion(t *testing.T) {
	s := newTestSession(t)
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)

	if s.BeginRound("topic") {
		t.Error("BeginRound during Voting = true, want false")
	}
}

func TestPendingSpeakers(t *testing.T) {
	s := newTestSession(t)

	s.SetPendingSpeakers([]string{"Player 1", "Player 2"})
	if got := len(s.PendingSpeakers()); got != 2 {
		t.Fatalf("len(PendingSpeakers()) = %d, want 2", got)
	}
	s.ClearPendingSpeaker("Player 1")
	got := s.PendingSpeakers()
	if len(got) != 1 || got[0] != "Player 2" {
		t.Errorf("PendingSpeakers() = %v, want [Player 2]", got)
	}

	// Phase transitions discard the wave in progress.
	s.AdvancePhase(PhaseDiscussion, PhaseVoting)
	if len(s.PendingSpeakers()) != 0 {
		t.Error("PendingSpeakers() survived a phase transition")
	}
}

func TestLastSpeakerAndSpokenCount(t *testing.T) {
	s := newTestSession(t)

	if got := s.LastSpeaker(); got != "" {
		t.Errorf("LastSpeaker() on empty log = %q, want \"\"", got)
	}
	s.AppendMessage("Player 1", "hi")
	s.AppendMessage("Player 3", "hey")
	s.AppendMessage("Player 1", "how's everyone")

	if got := s.LastSpeaker(); got != "Player 1" {
		t.Errorf("LastSpeaker() = %q, want %q", got, "Player 1")
	}
	if got := s.SpokenCount("Player 1"); got != 2 {
		t.Errorf("SpokenCount(Player 1) = %d, want 2", got)
	}
	if got := s.SpokenCount("Player 2"); got != 0 {
		t.Errorf("SpokenCount(Player 2) = %d, want 0", got)
	}
}
