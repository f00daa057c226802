// Package server exposes the lobby REST API and the per-room WebSocket
// endpoint. Both are thin client adapters over the same orchestration
// core; all game logic lives behind the registry.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/logging"
	"github.com/daehan-lim/humanhunter/internal/registry"
	"github.com/daehan-lim/humanhunter/internal/stats"
)

// Server is the HTTP front-end.
type Server struct {
	registry *registry.Registry
	sink     stats.Sink
	cfg      *config.Config
	logger   *logging.Logger
	http     *http.Server
}

// New creates a server around the registry.
func New(reg *registry.Registry, sink stats.Sink, cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		registry: reg,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)

	mux.HandleFunc("POST /api/rooms/create", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/list", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{code}/info", s.handleRoomInfo)
	mux.HandleFunc("POST /api/rooms/{code}/join", s.handleJoinRoom)
	mux.HandleFunc("POST /api/rooms/{code}/leave", s.handleLeaveRoom)
	mux.HandleFunc("GET /api/rooms/{code}/state", s.handleRoomState)
	mux.HandleFunc("POST /api/rooms/{code}/message", s.handleMessage)
	mux.HandleFunc("POST /api/rooms/{code}/vote", s.handleVote)
	mux.HandleFunc("POST /api/rooms/{code}/typing", s.handleTyping)
	mux.HandleFunc("GET /api/rooms/{code}/stats", s.handleRoomStats)
	mux.HandleFunc("GET /api/stats/recent", s.handleRecentStats)

	mux.HandleFunc("GET /ws/{code}/{player}", s.handleWebSocket)

	return mux
}

// ListenAndServe runs the server until the listener fails or Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains the server and tears down all rooms.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.Shutdown()
	return s.http.Shutdown(ctx)
}

// writeJSON writes v as a JSON response. Serialization failures are logged
// and surface as a bare 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

// writeFailure writes the lobby API's {"success": false, "error": ...}
// shape with a 200 status, matching what polling clients expect.
func (s *Server) writeFailure(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"error":   message,
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}
