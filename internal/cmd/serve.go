package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/logging"
	"github.com/daehan-lim/humanhunter/internal/registry"
	"github.com/daehan-lim/humanhunter/internal/server"
	"github.com/daehan-lim/humanhunter/internal/stats"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	Long: `Start the HTTP and WebSocket server. Rooms are created through the
lobby API; each room runs its own phase controller and agent
coordinator until the game finishes or every player leaves.

Without a model API key (see agents.model.api_key_env) AI players fall
back to canned responses, which is enough to exercise a room locally.`,
	RunE: runServe,
}

var (
	serveAddr string // Listen address override
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	capability := buildCapability(cfg, logger, rng)
	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	reg := registry.New(capability, sink, cfg, logger, rng)
	srv := server.New(reg, sink, cfg, logger)

	// Note config file edits while running. Most settings only apply to
	// rooms created after a restart, so this is informational.
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, restart to apply", "file", e.Name)
	})
	viper.WatchConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildCapability picks the agent backend. A configured API key gets the
// real model; otherwise rooms run on scripted players.
func buildCapability(cfg *config.Config, logger *logging.Logger, rng *rand.Rand) agent.Capability {
	client := agent.NewClient(cfg.Agents.Model)
	if client.Available() {
		logger.Info("agents using model backend",
			"model", cfg.Agents.Model.Name, "base_url", cfg.Agents.Model.BaseURL)
		return agent.NewModelCapability(client, logger,
			rand.New(rand.NewSource(rng.Int63())), cfg.Agents.VoteRetries)
	}
	logger.Warn("no model API key configured, agents will use scripted responses",
		"env", cfg.Agents.Model.APIKeyEnv)
	return agent.NewScriptedCapability(0.4, rand.New(rand.NewSource(rng.Int63())))
}

func buildSink(cfg *config.Config, logger *logging.Logger) (stats.Sink, error) {
	if cfg.Stats.Path == "" {
		return stats.NopSink{}, nil
	}
	sink, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}
	logger.Info("recording game stats", "path", cfg.Stats.Path)
	return sink, nil
}
