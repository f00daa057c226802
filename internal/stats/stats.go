// Package stats persists finished-game summaries. Writes are
// fire-and-forget from the orchestrator's point of view; a failed stats
// write never affects a running room.
package stats

import (
	"context"
	"time"

	"github.com/daehan-lim/humanhunter/internal/game"
)

// Summary is one finished game.
type Summary struct {
	ID          string
	RoomCode    string
	Topic       string
	Ruleset     game.Ruleset
	Winner      game.Winner
	Suspect     string
	SuspectRole game.Role
	Rounds      int
	StartedAt   time.Time
	EndedAt     time.Time
	Players     []game.Player
	ChatLog     []game.Message
	Votes       map[string]string
	VoteCounts  map[string]int
}

// Sink accepts finished-game summaries for durable storage.
type Sink interface {
	// Record stores one summary.
	Record(ctx context.Context, s Summary) error

	// Recent returns up to limit summaries, newest first.
	Recent(ctx context.Context, limit int) ([]Summary, error)

	// Close releases the sink's resources.
	Close() error
}

// NopSink discards everything. Used when no stats path is configured.
type NopSink struct{}

func (NopSink) Record(context.Context, Summary) error          { return nil }
func (NopSink) Recent(context.Context, int) ([]Summary, error) { return nil, nil }
func (NopSink) Close() error                                   { return nil }
