package phase

import (
	"math/rand"
	"time"

	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/logging"
)

// Option configures a Controller.
type Option func(*Controller)

// WithBus sets the event bus the controller publishes on. By default a
// controller owns a fresh bus; rooms share one bus across components.
func WithBus(bus *event.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithBudgets sets the Discussion and Voting wall-clock budgets.
func WithBudgets(discussion, voting time.Duration) Option {
	return func(c *Controller) {
		c.discussionBudget = discussion
		c.votingBudget = voting
	}
}

// WithRuleset selects the win-condition policy.
func WithRuleset(ruleset game.Ruleset, agentQuota int) Option {
	return func(c *Controller) {
		c.ruleset = ruleset
		c.agentQuota = agentQuota
	}
}

// WithRand sets the randomness source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}
