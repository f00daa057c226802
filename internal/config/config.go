package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Human Hunter server configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Agents  AgentConfig   `mapstructure:"agents"`
	Logging LoggingConfig `mapstructure:"logging"`
	Stats   StatsConfig   `mapstructure:"stats"`
}

// ServerConfig controls the HTTP/WebSocket front-end
type ServerConfig struct {
	// Addr is the listen address for the HTTP server (default ":8000")
	Addr string `mapstructure:"addr"`
	// ReadTimeoutSeconds is the HTTP server read timeout
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
	// WriteTimeoutSeconds is the HTTP server write timeout
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

// GameConfig controls game pacing and rules
type GameConfig struct {
	// DiscussionSeconds is the wall-clock budget for each Discussion phase
	DiscussionSeconds int `mapstructure:"discussion_seconds"`
	// VotingSeconds is the wall-clock budget for each Voting phase
	VotingSeconds int `mapstructure:"voting_seconds"`
	// Ruleset selects the win-condition policy: "suspect" ends the game on
	// the first vote based on the suspect's revealed role; "elimination"
	// removes the suspect and continues until a human is voted out or
	// AgentQuota agents have been eliminated
	Ruleset string `mapstructure:"ruleset"`
	// AgentQuota is the number of eliminated agents that ends the game with
	// a human win under the "elimination" ruleset
	AgentQuota int `mapstructure:"agent_quota"`
	// DefaultAgents is the agent count for rooms that don't specify one
	DefaultAgents int `mapstructure:"default_agents"`
	// MaxPlayers caps total players (humans + agents) per room
	MaxPlayers int `mapstructure:"max_players"`
	// MaxHumans caps human slots per room
	MaxHumans int `mapstructure:"max_humans"`
}

// AgentConfig controls agent participation pacing and the model backend
type AgentConfig struct {
	// Workers bounds concurrent capability calls per process
	Workers int `mapstructure:"workers"`
	// WaveDebounceMs is the minimum interval between engagement waves
	WaveDebounceMs int `mapstructure:"wave_debounce_ms"`
	// QuietPeriodSeconds is the silence threshold that triggers proactive engagement
	QuietPeriodSeconds int `mapstructure:"quiet_period_seconds"`
	// MessageCooldownSeconds is the minimum gap enforced before an agent speaks
	MessageCooldownSeconds int `mapstructure:"message_cooldown_seconds"`
	// TypingDelayMinMs / TypingDelayMaxMs bound the simulated typing delay
	TypingDelayMinMs int `mapstructure:"typing_delay_min_ms"`
	TypingDelayMaxMs int `mapstructure:"typing_delay_max_ms"`
	// ContextTail is how many recent messages are passed to decision calls
	ContextTail int `mapstructure:"context_tail"`
	// VoteRetries is how many times malformed vote output is re-prompted
	// before falling back to a random eligible target
	VoteRetries int `mapstructure:"vote_retries"`
	// Model backend settings
	Model Model `mapstructure:"model"`
}

// Model configures the OpenAI-compatible chat backend used by agents.
// An empty API key switches the server to the scripted offline capability.
type Model struct {
	BaseURL     string  `mapstructure:"base_url"`
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `mapstructure:"api_key_env"`
	// TimeoutSeconds bounds a single chat completion call
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for log files; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// StatsConfig controls the durable game-summary sink
type StatsConfig struct {
	// Path is the SQLite database file for finished-game summaries
	Path string `mapstructure:"path"`
}

// DiscussionTimeout returns the discussion budget as a time.Duration
func (g *GameConfig) DiscussionTimeout() time.Duration {
	return time.Duration(g.DiscussionSeconds) * time.Second
}

// VotingTimeout returns the voting budget as a time.Duration
func (g *GameConfig) VotingTimeout() time.Duration {
	return time.Duration(g.VotingSeconds) * time.Second
}

// WaveDebounce returns the wave debounce as a time.Duration
func (a *AgentConfig) WaveDebounce() time.Duration {
	return time.Duration(a.WaveDebounceMs) * time.Millisecond
}

// QuietPeriod returns the quiet-period threshold as a time.Duration
func (a *AgentConfig) QuietPeriod() time.Duration {
	return time.Duration(a.QuietPeriodSeconds) * time.Second
}

// MessageCooldown returns the agent speech cooldown as a time.Duration
func (a *AgentConfig) MessageCooldown() time.Duration {
	return time.Duration(a.MessageCooldownSeconds) * time.Second
}

// TypingDelayBounds returns the typing delay interval
func (a *AgentConfig) TypingDelayBounds() (time.Duration, time.Duration) {
	return time.Duration(a.TypingDelayMinMs) * time.Millisecond,
		time.Duration(a.TypingDelayMaxMs) * time.Millisecond
}

// APIKey resolves the model API key from the configured environment variable
func (m *Model) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// Timeout returns the model call timeout as a time.Duration
func (m *Model) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8000",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Game: GameConfig{
			DiscussionSeconds: 180, // 3 minutes of discussion
			VotingSeconds:     60,  // 1 minute to vote
			Ruleset:           "suspect",
			AgentQuota:        1,
			DefaultAgents:     4,
			MaxPlayers:        12,
			MaxHumans:         4,
		},
		Agents: AgentConfig{
			Workers:                10,
			WaveDebounceMs:         2000,
			QuietPeriodSeconds:     10,
			MessageCooldownSeconds: 10,
			TypingDelayMinMs:       1000,
			TypingDelayMaxMs:       2000,
			ContextTail:            8,
			VoteRetries:            3,
			Model: Model{
				BaseURL:        "https://api.openai.com/v1",
				Name:           "gpt-4o-mini",
				Temperature:    0.8,
				APIKeyEnv:      "OPENAI_API_KEY",
				TimeoutSeconds: 30,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Stats: StatsConfig{
			Path: "humanhunter-stats.db",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)

	viper.SetDefault("game.discussion_seconds", defaults.Game.DiscussionSeconds)
	viper.SetDefault("game.voting_seconds", defaults.Game.VotingSeconds)
	viper.SetDefault("game.ruleset", defaults.Game.Ruleset)
	viper.SetDefault("game.agent_quota", defaults.Game.AgentQuota)
	viper.SetDefault("game.default_agents", defaults.Game.DefaultAgents)
	viper.SetDefault("game.max_players", defaults.Game.MaxPlayers)
	viper.SetDefault("game.max_humans", defaults.Game.MaxHumans)

	viper.SetDefault("agents.workers", defaults.Agents.Workers)
	viper.SetDefault("agents.wave_debounce_ms", defaults.Agents.WaveDebounceMs)
	viper.SetDefault("agents.quiet_period_seconds", defaults.Agents.QuietPeriodSeconds)
	viper.SetDefault("agents.message_cooldown_seconds", defaults.Agents.MessageCooldownSeconds)
	viper.SetDefault("agents.typing_delay_min_ms", defaults.Agents.TypingDelayMinMs)
	viper.SetDefault("agents.typing_delay_max_ms", defaults.Agents.TypingDelayMaxMs)
	viper.SetDefault("agents.context_tail", defaults.Agents.ContextTail)
	viper.SetDefault("agents.vote_retries", defaults.Agents.VoteRetries)
	viper.SetDefault("agents.model.base_url", defaults.Agents.Model.BaseURL)
	viper.SetDefault("agents.model.name", defaults.Agents.Model.Name)
	viper.SetDefault("agents.model.temperature", defaults.Agents.Model.Temperature)
	viper.SetDefault("agents.model.api_key_env", defaults.Agents.Model.APIKeyEnv)
	viper.SetDefault("agents.model.timeout_seconds", defaults.Agents.Model.TimeoutSeconds)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("stats.path", defaults.Stats.Path)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "humanhunter")
	}
	// Fall back to ~/.config/humanhunter
	home, err := os.UserHomeDir()
	if err != nil {
		return ".humanhunter"
	}
	return filepath.Join(home, ".config", "humanhunter")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidRulesets returns the list of valid ruleset values
func ValidRulesets() []string {
	return []string{"suspect", "elimination"}
}

// IsValidRuleset checks if the given ruleset is valid
func IsValidRuleset(ruleset string) bool {
	for _, valid := range ValidRulesets() {
		if ruleset == valid {
			return true
		}
	}
	return false
}
