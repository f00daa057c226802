package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daehan-lim/humanhunter/internal/game"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	room_code TEXT NOT NULL,
	topic TEXT NOT NULL,
	ruleset TEXT NOT NULL,
	winner TEXT NOT NULL,
	suspect TEXT NOT NULL,
	suspect_role TEXT NOT NULL,
	rounds INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at INTEGER NOT NULL,
	players TEXT NOT NULL,
	chat_log TEXT NOT NULL,
	votes TEXT NOT NULL,
	vote_counts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_games_ended ON games(ended_at DESC);
`

// SQLiteSink stores summaries in a local SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// Open creates or opens the database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*SQLiteSink, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create stats directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply stats schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Record stores one finished game.
func (s *SQLiteSink) Record(ctx context.Context, sum Summary) error {
	players, err := json.Marshal(sum.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	chatLog, err := json.Marshal(sum.ChatLog)
	if err != nil {
		return fmt.Errorf("marshal chat log: %w", err)
	}
	votes, err := json.Marshal(sum.Votes)
	if err != nil {
		return fmt.Errorf("marshal votes: %w", err)
	}
	voteCounts, err := json.Marshal(sum.VoteCounts)
	if err != nil {
		return fmt.Errorf("marshal vote counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, room_code, topic, ruleset, winner, suspect, suspect_role,
			rounds, started_at, ended_at, players, chat_log, votes, vote_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.RoomCode, sum.Topic, string(sum.Ruleset), string(sum.Winner),
		sum.Suspect, string(sum.SuspectRole), sum.Rounds,
		sum.StartedAt.Unix(), sum.EndedAt.Unix(),
		string(players), string(chatLog), string(votes), string(voteCounts))
	if err != nil {
		return fmt.Errorf("insert game summary: %w", err)
	}
	return nil
}

// Recent returns up to limit summaries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_code, topic, ruleset, winner, suspect, suspect_role,
			rounds, started_at, ended_at, players, chat_log, votes, vote_counts
		FROM games ORDER BY ended_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query game summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var ruleset, winner, role string
		var startedAt, endedAt int64
		var players, chatLog, votes, voteCounts string
		if err := rows.Scan(&sum.ID, &sum.RoomCode, &sum.Topic, &ruleset, &winner,
			&sum.Suspect, &role, &sum.Rounds, &startedAt, &endedAt,
			&players, &chatLog, &votes, &voteCounts); err != nil {
			return nil, fmt.Errorf("scan game summary: %w", err)
		}
		sum.Ruleset = game.Ruleset(ruleset)
		sum.Winner = game.Winner(winner)
		sum.SuspectRole = game.Role(role)
		sum.StartedAt = time.Unix(startedAt, 0)
		sum.EndedAt = time.Unix(endedAt, 0)
		if err := json.Unmarshal([]byte(players), &sum.Players); err != nil {
			return nil, fmt.Errorf("unmarshal players: %w", err)
		}
		if err := json.Unmarshal([]byte(chatLog), &sum.ChatLog); err != nil {
			return nil, fmt.Errorf("unmarshal chat log: %w", err)
		}
		if err := json.Unmarshal([]byte(votes), &sum.Votes); err != nil {
			return nil, fmt.Errorf("unmarshal votes: %w", err)
		}
		if err := json.Unmarshal([]byte(voteCounts), &sum.VoteCounts); err != nil {
			return nil, fmt.Errorf("unmarshal vote counts: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
