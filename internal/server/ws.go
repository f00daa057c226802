package server

import (
	"net/http"

	"github.com/daehan-lim/humanhunter/internal/transport"
)

// handleWebSocket upgrades the connection and pumps frames between the
// client and the room until the socket drops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	playerID := r.PathValue("player")

	rm, err := s.registry.Get(code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if _, ok := rm.Session().Player(playerID); !ok {
		http.Error(w, "unknown player", http.StatusForbidden)
		return
	}

	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			"room", code, "player", playerID, "error", err)
		return
	}

	rec := transport.NewWSRecipient(playerID, conn)
	rm.Connect(rec)
	defer rm.Disconnect(playerID)

	logger := s.logger.WithRoom(code).WithPlayer(playerID)
	logger.Debug("websocket connected")

	err = rec.ReadFrames(func(f transport.Frame) {
		switch f.Type() {
		case "message":
			if err := rm.HandleMessage(playerID, f.String("message")); err != nil {
				_ = rec.Send(transport.NewFrame("error", map[string]any{
					"message": messageErrorMessage(err),
				}))
			}
		case "vote":
			if err := rm.HandleVote(playerID, f.String("vote")); err != nil {
				_ = rec.Send(transport.NewFrame("error", map[string]any{
					"message": voteErrorMessage(err),
				}))
			}
		case "typing":
			rm.HandleTyping(playerID, f.String("status") == "start")
		}
	})
	logger.Debug("websocket closed", "error", err)
}
