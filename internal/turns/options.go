package turns

import (
	"math/rand"
	"time"

	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/logging"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBus sets the event bus waves are triggered from and events are
// published on.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithRand sets the randomness source, mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) {
		c.rng = rng
	}
}

// WithAgentConfig applies the agents section of the server configuration.
func WithAgentConfig(cfg config.AgentConfig) Option {
	return func(c *Coordinator) {
		c.debounce = cfg.WaveDebounce()
		c.quietPeriod = cfg.QuietPeriod()
		c.cooldown = cfg.MessageCooldown()
		c.typingMin, c.typingMax = cfg.TypingDelayBounds()
		c.contextTail = cfg.ContextTail
		if cfg.Workers > 0 {
			c.sem = make(chan struct{}, cfg.Workers)
		}
	}
}

// WithTimings overrides individual timing knobs, mainly for tests that
// need fast waves.
func WithTimings(debounce, quietPeriod, cooldown, typingMin, typingMax, pacing time.Duration) Option {
	return func(c *Coordinator) {
		c.debounce = debounce
		c.quietPeriod = quietPeriod
		c.cooldown = cooldown
		c.typingMin = typingMin
		c.typingMax = typingMax
		c.pacing = pacing
	}
}
