// Package vote collects ballots, detects completion, and resolves a round
// into a single suspect. Resolution never blocks the game: a round with no
// votes at all falls back to a forced random choice.
package vote

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/daehan-lim/humanhunter/internal/game"
)

// Aggregator tallies a session's votes into an outcome. It holds no game
// state of its own; the session is the single source of truth and the
// aggregator only observes it.
type Aggregator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAggregator creates an aggregator using the given randomness source for
// tie-breaking and fallbacks.
func NewAggregator(rng *rand.Rand) *Aggregator {
	return &Aggregator{rng: rng}
}

// Cast records a vote on the session and reports whether every active
// player has now voted. The session enforces the write-once and
// eligibility rules; Cast only adds completion detection.
func (a *Aggregator) Cast(s *game.Session, voter, target string) (complete bool, err error) {
	if err := s.CastVote(voter, target); err != nil {
		return false, err
	}
	return s.AllVoted(), nil
}

// Resolve tallies the session's votes and selects the suspect. The returned
// bool reports whether the game ends with this resolution; under the
// elimination ruleset an agent suspect below the quota keeps the game going
// and the outcome carries no winner.
//
// Resolve does not mutate the session. The controller owns committing the
// outcome, eliminating the suspect, and transitioning phases.
func (a *Aggregator) Resolve(s *game.Session, ruleset game.Ruleset, agentQuota int) (game.Outcome, bool) {
	votes := s.Votes()

	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}

	suspect := a.selectSuspect(s, counts)
	role := game.RoleAgent
	if p, ok := s.Player(suspect); ok {
		role = p.Role
	}

	outcome := game.Outcome{
		Suspect:    suspect,
		Role:       role,
		VoteCounts: counts,
	}

	switch ruleset {
	case game.RulesetElimination:
		if role == game.RoleHuman {
			outcome.Winner = game.WinnerAgents
			return outcome, true
		}
		if s.EliminatedCount(game.RoleAgent)+1 >= agentQuota {
			outcome.Winner = game.WinnerHumans
			return outcome, true
		}
		return outcome, false
	default:
		// Suspect ruleset: the revealed role decides the game outright.
		if role == game.RoleAgent {
			outcome.Winner = game.WinnerHumans
		} else {
			outcome.Winner = game.WinnerAgents
		}
		return outcome, true
	}
}

// selectSuspect picks the vote leader, breaking ties uniformly at random.
// With zero votes it picks a random active agent so the round always
// produces a suspect.
func (a *Aggregator) selectSuspect(s *game.Session, counts map[string]int) string {
	if len(counts) == 0 {
		agents := s.ActiveAgents()
		if len(agents) == 0 {
			// Degenerate session; fall back to any active player.
			agents = s.ActivePlayers()
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		return agents[a.rng.Intn(len(agents))]
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	var leaders []string
	for target, c := range counts {
		if c == max {
			leaders = append(leaders, target)
		}
	}
	// Stable order before the random draw so the choice depends only on
	// the seed, not map iteration order.
	sort.Strings(leaders)
	if len(leaders) == 1 {
		return leaders[0]
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return leaders[a.rng.Intn(len(leaders))]
}
