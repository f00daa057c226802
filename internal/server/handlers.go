package server

import (
	"net/http"
	"strconv"

	"github.com/daehan-lim/humanhunter/internal/errors"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/room"
	"github.com/daehan-lim/humanhunter/internal/stats"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleConfig exposes the handful of settings lobby clients need to
// render countdowns and seat counts.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"num_ai_players":  s.cfg.Game.DefaultAgents,
		"discussion_time": s.cfg.Game.DiscussionSeconds,
		"voting_time":     s.cfg.Game.VotingSeconds,
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxHumans    int `json:"max_humans"`
		TotalPlayers int `json:"total_players"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, "invalid request body")
		return
	}
	if req.MaxHumans == 0 {
		req.MaxHumans = 1
	}

	rm, err := s.registry.Create(req.MaxHumans, req.TotalPlayers)
	if err != nil {
		s.writeFailure(w, err.Error())
		return
	}
	info := rm.Info()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"room_code":     info.Code,
		"room_name":     info.Name,
		"max_humans":    info.MaxHumans,
		"total_players": info.TotalPlayers,
	})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	perPage := queryInt(r, "per_page", 10)

	infos, total := s.registry.ListWaiting(page, perPage)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"rooms":    infos,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}
	info := rm.Info()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"room_code":      info.Code,
		"room_name":      info.Name,
		"current_humans": info.CurrentHumans,
		"max_humans":     info.MaxHumans,
		"total_players":  info.TotalPlayers,
		"room_status":    info.Status,
	})
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}

	playerID, started, err := rm.Join(r.Context())
	if err != nil {
		s.writeFailure(w, joinErrorMessage(err))
		return
	}
	info := rm.Info()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"player_id":      playerID,
		"can_start":      started,
		"waiting":        !started,
		"current_humans": info.CurrentHumans,
		"max_humans":     info.MaxHumans,
	})
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrGameInProgress):
		return "game already in progress"
	case errors.Is(err, errors.ErrGameCompleted):
		return "game already completed"
	case errors.Is(err, errors.ErrRoomFull):
		return "room is full"
	}
	return err.Error()
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.PlayerID == "" {
		s.writeFailure(w, "player_id required")
		return
	}

	action, err := s.registry.Leave(r.PathValue("code"), req.PlayerID)
	if err != nil {
		if errors.Is(err, errors.ErrRoomNotFound) {
			s.writeFailure(w, "room not found")
			return
		}
		s.writeFailure(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"action":  string(action),
	})
}

// handleRoomState serves the polling snapshot. A missing room is not an
// error here: clients poll after leaving and need a clean signal that the
// room is gone.
func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	rm, err := s.registry.Get(r.PathValue("code"))
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}

	view := rm.State()
	resp := map[string]any{
		"exists":         true,
		"room_status":    string(rm.Status()),
		"phase":          view.Phase,
		"round":          view.Round,
		"topic":          view.Topic,
		"players":        view.Players,
		"chat_history":   view.ChatHistory,
		"votes":          view.Votes,
		"typing_players": view.Typing,
		"timer":          s.phaseTimer(view.Phase),
	}
	if view.Winner != "" {
		resp["winner"] = view.Winner
		resp["selected_suspect"] = view.Suspect
		resp["suspect_role"] = view.SuspectRole
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) phaseTimer(phase string) int {
	switch game.Phase(phase) {
	case game.PhaseDiscussion:
		return s.cfg.Game.DiscussionSeconds
	case game.PhaseVoting:
		return s.cfg.Game.VotingSeconds
	}
	return 0
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
		Message  string `json:"message"`
	}
	if err := decodeBody(r, &req); err != nil || req.PlayerID == "" || req.Message == "" {
		s.writeFailure(w, "player_id and message required")
		return
	}

	if err := rm.HandleMessage(req.PlayerID, req.Message); err != nil {
		s.writeFailure(w, messageErrorMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func messageErrorMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrWrongPhase):
		return "chat is closed outside the discussion phase"
	case errors.Is(err, errors.ErrPlayerEliminated):
		return "eliminated players cannot chat"
	case errors.Is(err, errors.ErrPlayerNotFound):
		return "unknown player"
	}
	return err.Error()
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
		Vote     string `json:"vote"`
	}
	if err := decodeBody(r, &req); err != nil || req.PlayerID == "" || req.Vote == "" {
		s.writeFailure(w, "player_id and vote required")
		return
	}

	if err := rm.HandleVote(req.PlayerID, req.Vote); err != nil {
		s.writeFailure(w, voteErrorMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func voteErrorMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrWrongPhase):
		return "voting is not open"
	case errors.Is(err, errors.ErrAlreadyVoted):
		return "vote already cast"
	case errors.Is(err, errors.ErrIneligibleTarget):
		return "invalid vote target"
	case errors.Is(err, errors.ErrPlayerNotFound):
		return "unknown player"
	}
	return err.Error()
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
		Typing   bool   `json:"typing"`
	}
	if err := decodeBody(r, &req); err != nil || req.PlayerID == "" {
		s.writeFailure(w, "player_id required")
		return
	}

	rm.HandleTyping(req.PlayerID, req.Typing)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleRoomStats reports the finished game's result for a room that is
// still resident. Completed rooms linger until their last player leaves,
// so clients on the results screen read from here.
func (s *Server) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.room(w, r)
	if !ok {
		return
	}
	outcome := rm.Session().Outcome()
	if rm.Status() != room.StatusCompleted || outcome == nil {
		s.writeFailure(w, "game not completed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"room_code":        rm.Code(),
		"topic":            rm.Session().Topic(),
		"rounds":           rm.Session().Round(),
		"winner":           outcome.Winner.String(),
		"selected_suspect": outcome.Suspect,
		"suspect_role":     outcome.Role.String(),
		"vote_counts":      outcome.VoteCounts,
		"total_messages":   rm.Session().MessageCount(),
	})
}

// summaryView is the wire shape for persisted game summaries.
type summaryView struct {
	ID          string            `json:"id"`
	RoomCode    string            `json:"room_code"`
	Topic       string            `json:"topic"`
	Ruleset     string            `json:"ruleset"`
	Winner      string            `json:"winner"`
	Suspect     string            `json:"selected_suspect"`
	SuspectRole string            `json:"suspect_role"`
	Rounds      int               `json:"rounds"`
	StartedAt   int64             `json:"started_at"`
	EndedAt     int64             `json:"ended_at"`
	Messages    int               `json:"total_messages"`
	VoteCounts  map[string]int    `json:"vote_counts"`
	Votes       map[string]string `json:"votes"`
}

func newSummaryView(sum stats.Summary) summaryView {
	return summaryView{
		ID:          sum.ID,
		RoomCode:    sum.RoomCode,
		Topic:       sum.Topic,
		Ruleset:     string(sum.Ruleset),
		Winner:      sum.Winner.String(),
		Suspect:     sum.Suspect,
		SuspectRole: sum.SuspectRole.String(),
		Rounds:      sum.Rounds,
		StartedAt:   sum.StartedAt.Unix(),
		EndedAt:     sum.EndedAt.Unix(),
		Messages:    len(sum.ChatLog),
		VoteCounts:  sum.VoteCounts,
		Votes:       sum.Votes,
	}
}

func (s *Server) handleRecentStats(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	summaries, err := s.sink.Recent(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, "stats unavailable")
		return
	}
	views := make([]summaryView, len(summaries))
	for i, sum := range summaries {
		views[i] = newSummaryView(sum)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"games":   views,
	})
}

// room resolves the {code} path segment, writing the not-found failure
// itself so handlers can early-return.
func (s *Server) room(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	rm, err := s.registry.Get(r.PathValue("code"))
	if err != nil {
		s.writeFailure(w, "room not found")
		return nil, false
	}
	return rm, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
