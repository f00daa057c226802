package cmd

import (
	"strings"

	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "humanhunter",
	Short: "Social deduction game server where humans hide among AI players",
	Long: `Humanhunter runs game rooms where a few humans chat alongside
LLM-driven players, then everyone votes on who they think is an AI.
The server hosts the lobby API, the per-room WebSocket feed, and the
agent orchestration that keeps AI players talking.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/humanhunter/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/humanhunter")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HUMANHUNTER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., HUMANHUNTER_GAME_DISCUSSION_SECONDS for game.discussion_seconds
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
