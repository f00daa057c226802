package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/stats"
	"github.com/daehan-lim/humanhunter/internal/util"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent finished games",
	Long: `Display summaries of recently finished games from the stats database.

Shows the room, topic, winning side, the voted suspect, and how long
each game ran.`,
	RunE: runStatsCmd,
}

var (
	statsLimit int  // Max games to show
	statsJSON  bool // Output as JSON
)

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "Maximum number of games to show")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	humanStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"})
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	roomStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "75"})
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "250", Dark: "238"})
)

func runStatsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Stats.Path == "" {
		fmt.Println("No stats database configured (set stats.path)")
		return nil
	}
	if _, err := os.Stat(cfg.Stats.Path); err != nil {
		fmt.Println("No games recorded yet")
		return nil
	}

	sink, err := stats.Open(cfg.Stats.Path)
	if err != nil {
		return fmt.Errorf("failed to open stats database: %w", err)
	}
	defer sink.Close()

	summaries, err := sink.Recent(context.Background(), statsLimit)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No games recorded yet")
		return nil
	}

	if statsJSON {
		return printGamesJSON(summaries)
	}
	printGamesText(summaries)
	return nil
}

func printGamesText(summaries []stats.Summary) {
	fmt.Println()
	fmt.Println(headerStyle.Render("RECENT GAMES"))
	fmt.Println(dividerStyle.Render(strings.Repeat("─", 60)))

	for _, sum := range summaries {
		winner := humanStyle.Render("humans win")
		if sum.Winner == game.WinnerAgents {
			winner = agentStyle.Render("AI wins")
		}
		duration := sum.EndedAt.Sub(sum.StartedAt).Round(time.Second)

		fmt.Printf("%s  %s  %s\n",
			roomStyle.Render(sum.RoomCode),
			winner,
			mutedStyle.Render(sum.EndedAt.Format("2006-01-02 15:04")))
		fmt.Printf("  suspect %s (%s), %d round(s), %d messages, %s\n",
			sum.Suspect, sum.SuspectRole, sum.Rounds, len(sum.ChatLog), duration)

		fmt.Printf("  %s\n", mutedStyle.Render(util.TruncateString(sum.Topic, 70)))
		fmt.Println()
	}
}

func printGamesJSON(summaries []stats.Summary) error {
	type gameOut struct {
		RoomCode    string         `json:"room_code"`
		Topic       string         `json:"topic"`
		Ruleset     string         `json:"ruleset"`
		Winner      string         `json:"winner"`
		Suspect     string         `json:"suspect"`
		SuspectRole string         `json:"suspect_role"`
		Rounds      int            `json:"rounds"`
		Messages    int            `json:"messages"`
		StartedAt   time.Time      `json:"started_at"`
		EndedAt     time.Time      `json:"ended_at"`
		VoteCounts  map[string]int `json:"vote_counts"`
	}
	out := make([]gameOut, len(summaries))
	for i, sum := range summaries {
		out[i] = gameOut{
			RoomCode:    sum.RoomCode,
			Topic:       sum.Topic,
			Ruleset:     string(sum.Ruleset),
			Winner:      sum.Winner.String(),
			Suspect:     sum.Suspect,
			SuspectRole: sum.SuspectRole.String(),
			Rounds:      sum.Rounds,
			Messages:    len(sum.ChatLog),
			StartedAt:   sum.StartedAt,
			EndedAt:     sum.EndedAt,
			VoteCounts:  sum.VoteCounts,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
