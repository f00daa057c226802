package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default server config
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":8000")
	}

	// Verify default game config
	if cfg.Game.DiscussionSeconds != 180 {
		t.Errorf("Game.DiscussionSeconds = %d, want 180", cfg.Game.DiscussionSeconds)
	}
	if cfg.Game.VotingSeconds != 60 {
		t.Errorf("Game.VotingSeconds = %d, want 60", cfg.Game.VotingSeconds)
	}
	if cfg.Game.Ruleset != "suspect" {
		t.Errorf("Game.Ruleset = %q, want %q", cfg.Game.Ruleset, "suspect")
	}
	if cfg.Game.DefaultAgents != 4 {
		t.Errorf("Game.DefaultAgents = %d, want 4", cfg.Game.DefaultAgents)
	}
	if cfg.Game.MaxPlayers != 12 {
		t.Errorf("Game.MaxPlayers = %d, want 12", cfg.Game.MaxPlayers)
	}

	// Verify default agent config
	if cfg.Agents.Workers != 10 {
		t.Errorf("Agents.Workers = %d, want 10", cfg.Agents.Workers)
	}
	if cfg.Agents.WaveDebounceMs != 2000 {
		t.Errorf("Agents.WaveDebounceMs = %d, want 2000", cfg.Agents.WaveDebounceMs)
	}
	if cfg.Agents.ContextTail != 8 {
		t.Errorf("Agents.ContextTail = %d, want 8", cfg.Agents.ContextTail)
	}
	if cfg.Agents.Model.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("Agents.Model.APIKeyEnv = %q, want OPENAI_API_KEY", cfg.Agents.Model.APIKeyEnv)
	}

	// Verify default logging config
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestGameConfig_Timeouts(t *testing.T) {
	g := GameConfig{DiscussionSeconds: 180, VotingSeconds: 60}

	if g.DiscussionTimeout() != 3*time.Minute {
		t.Errorf("DiscussionTimeout() = %v, want 3m", g.DiscussionTimeout())
	}
	if g.VotingTimeout() != time.Minute {
		t.Errorf("VotingTimeout() = %v, want 1m", g.VotingTimeout())
	}
}

func TestAgentConfig_Durations(t *testing.T) {
	a := AgentConfig{
		WaveDebounceMs:         2000,
		QuietPeriodSeconds:     10,
		MessageCooldownSeconds: 10,
		TypingDelayMinMs:       1000,
		TypingDelayMaxMs:       2000,
	}

	if a.WaveDebounce() != 2*time.Second {
		t.Errorf("WaveDebounce() = %v, want 2s", a.WaveDebounce())
	}
	if a.QuietPeriod() != 10*time.Second {
		t.Errorf("QuietPeriod() = %v, want 10s", a.QuietPeriod())
	}
	if a.MessageCooldown() != 10*time.Second {
		t.Errorf("MessageCooldown() = %v, want 10s", a.MessageCooldown())
	}
	min, max := a.TypingDelayBounds()
	if min != time.Second || max != 2*time.Second {
		t.Errorf("TypingDelayBounds() = %v, %v, want 1s, 2s", min, max)
	}
}

func TestModel_APIKey(t *testing.T) {
	t.Run("resolves from environment", func(t *testing.T) {
		t.Setenv("HUMANHUNTER_TEST_KEY", "sk-test")
		m := Model{APIKeyEnv: "HUMANHUNTER_TEST_KEY"}
		if m.APIKey() != "sk-test" {
			t.Errorf("APIKey() = %q, want sk-test", m.APIKey())
		}
	})

	t.Run("empty env name yields empty key", func(t *testing.T) {
		m := Model{}
		if m.APIKey() != "" {
			t.Errorf("APIKey() = %q, want empty", m.APIKey())
		}
	})
}

func TestConfigDir(t *testing.T) {
	t.Run("respects XDG_CONFIG_HOME", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", dir)

		got := ConfigDir()
		want := filepath.Join(dir, "humanhunter")
		if got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to home config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		want := filepath.Join(home, ".config", "humanhunter")
		if got := ConfigDir(); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestIsValidRuleset(t *testing.T) {
	for _, valid := range ValidRulesets() {
		if !IsValidRuleset(valid) {
			t.Errorf("IsValidRuleset(%q) = false", valid)
		}
	}
	if IsValidRuleset("chaos") {
		t.Error("IsValidRuleset(\"chaos\") = true")
	}
}
