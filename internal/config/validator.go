package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "game.discussion_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateGame()...)
	errors = append(errors, c.validateAgents()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must not be empty",
		})
	}
	if c.Server.ReadTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout_seconds",
			Value:   c.Server.ReadTimeoutSeconds,
			Message: "must be non-negative",
		})
	}
	if c.Server.WriteTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout_seconds",
			Value:   c.Server.WriteTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateGame validates the GameConfig
func (c *Config) validateGame() []ValidationError {
	var errors []ValidationError

	if c.Game.DiscussionSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "game.discussion_seconds",
			Value:   c.Game.DiscussionSeconds,
			Message: "must be positive",
		})
	}
	if c.Game.VotingSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "game.voting_seconds",
			Value:   c.Game.VotingSeconds,
			Message: "must be positive",
		})
	}
	if c.Game.Ruleset != "" && !IsValidRuleset(c.Game.Ruleset) {
		errors = append(errors, ValidationError{
			Field:   "game.ruleset",
			Value:   c.Game.Ruleset,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidRulesets(), ", ")),
		})
	}
	if c.Game.AgentQuota < 1 {
		errors = append(errors, ValidationError{
			Field:   "game.agent_quota",
			Value:   c.Game.AgentQuota,
			Message: "must be at least 1",
		})
	}
	if c.Game.DefaultAgents < 1 {
		errors = append(errors, ValidationError{
			Field:   "game.default_agents",
			Value:   c.Game.DefaultAgents,
			Message: "must be at least 1",
		})
	}
	if c.Game.MaxHumans < 1 {
		errors = append(errors, ValidationError{
			Field:   "game.max_humans",
			Value:   c.Game.MaxHumans,
			Message: "must be at least 1",
		})
	}
	if c.Game.MaxPlayers <= c.Game.MaxHumans {
		errors = append(errors, ValidationError{
			Field:   "game.max_players",
			Value:   c.Game.MaxPlayers,
			Message: fmt.Sprintf("must exceed game.max_humans (%d)", c.Game.MaxHumans),
		})
	}

	return errors
}

// validateAgents validates the AgentConfig
func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError

	if c.Agents.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "agents.workers",
			Value:   c.Agents.Workers,
			Message: "must be at least 1",
		})
	}
	if c.Agents.WaveDebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "agents.wave_debounce_ms",
			Value:   c.Agents.WaveDebounceMs,
			Message: "must be non-negative",
		})
	}
	if c.Agents.QuietPeriodSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "agents.quiet_period_seconds",
			Value:   c.Agents.QuietPeriodSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Agents.TypingDelayMinMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "agents.typing_delay_min_ms",
			Value:   c.Agents.TypingDelayMinMs,
			Message: "must be non-negative",
		})
	}
	if c.Agents.TypingDelayMaxMs < c.Agents.TypingDelayMinMs {
		errors = append(errors, ValidationError{
			Field:   "agents.typing_delay_max_ms",
			Value:   c.Agents.TypingDelayMaxMs,
			Message: fmt.Sprintf("must be >= agents.typing_delay_min_ms (%d)", c.Agents.TypingDelayMinMs),
		})
	}
	if c.Agents.ContextTail < 1 {
		errors = append(errors, ValidationError{
			Field:   "agents.context_tail",
			Value:   c.Agents.ContextTail,
			Message: "must be at least 1",
		})
	}
	if c.Agents.VoteRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "agents.vote_retries",
			Value:   c.Agents.VoteRetries,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
