// Package room ties one game's components together: the session, the phase
// controller, the turn coordinator, the broadcaster, and the stats sink all
// hang off a Room and communicate over its event bus.
package room

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/errors"
	"github.com/daehan-lim/humanhunter/internal/event"
	"github.com/daehan-lim/humanhunter/internal/game"
	"github.com/daehan-lim/humanhunter/internal/logging"
	"github.com/daehan-lim/humanhunter/internal/phase"
	"github.com/daehan-lim/humanhunter/internal/stats"
	"github.com/daehan-lim/humanhunter/internal/transport"
	"github.com/daehan-lim/humanhunter/internal/turns"
	"github.com/daehan-lim/humanhunter/internal/vote"
)

// Status is a room's lobby state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// LeaveAction reports what a leave did to the room.
type LeaveAction string

const (
	// LeaveTerminated means the whole room was torn down (creator left).
	LeaveTerminated LeaveAction = "terminated"

	// LeaveRemoved means the player left a running game and the room
	// continues without them.
	LeaveRemoved LeaveAction = "removed"

	// LeaveDeleted means the room emptied out and was deleted.
	LeaveDeleted LeaveAction = "deleted"
)

// Room is one game instance plus its lobby metadata.
type Room struct {
	code      string
	name      string
	createdAt time.Time

	maxHumans    int
	totalPlayers int

	session     *game.Session
	bus         *event.Bus
	broadcaster *transport.Broadcaster
	controller  *phase.Controller
	coordinator *turns.Coordinator
	sink        stats.Sink
	logger      *logging.Logger
	cfg         *config.Config

	mu               sync.Mutex
	status           Status
	creatorID        string
	humans           []string
	availableNumbers []int
	typing           map[string]bool
	rng              *rand.Rand
	started          bool
	stopped          bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a waiting room. Agents are seeded into the session
// immediately with shuffled player numbers; the numbers left over are
// reserved for humans as they join.
func New(code string, maxHumans, totalPlayers int, capability agent.Capability, sink stats.Sink, cfg *config.Config, logger *logging.Logger, rng *rand.Rand) *Room {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if sink == nil {
		sink = stats.NopSink{}
	}

	numAgents := totalPlayers - maxHumans

	// Shuffle 1..totalPlayers so agents and humans get indistinguishable
	// player numbers.
	numbers := rng.Perm(totalPlayers)
	agents := make([]game.AgentSpec, numAgents)
	for i := 0; i < numAgents; i++ {
		agents[i] = game.AgentSpec{
			ID:      fmt.Sprintf("Player %d", numbers[i]+1),
			Persona: game.RandomPersona(rng),
		}
	}
	humanNumbers := make([]int, 0, maxHumans)
	for _, n := range numbers[numAgents:] {
		humanNumbers = append(humanNumbers, n+1)
	}

	bus := event.NewBus()
	session := game.NewSession(code, game.RandomTopic(rng), agents)
	roomLogger := logger.WithRoom(code)

	r := &Room{
		code:             code,
		name:             "Room " + code,
		createdAt:        time.Now(),
		maxHumans:        maxHumans,
		totalPlayers:     totalPlayers,
		session:          session,
		bus:              bus,
		broadcaster:      transport.NewBroadcaster(roomLogger),
		sink:             sink,
		logger:           roomLogger,
		cfg:              cfg,
		status:           StatusWaiting,
		availableNumbers: humanNumbers,
		typing:           make(map[string]bool),
		rng:              rng,
	}

	aggregator := vote.NewAggregator(rand.New(rand.NewSource(rng.Int63())))
	r.controller = phase.NewController(session, aggregator, capability,
		phase.WithBus(bus),
		phase.WithLogger(roomLogger),
		phase.WithBudgets(cfg.Game.DiscussionTimeout(), cfg.Game.VotingTimeout()),
		phase.WithRuleset(game.Ruleset(cfg.Game.Ruleset), cfg.Game.AgentQuota),
		phase.WithRand(rand.New(rand.NewSource(rng.Int63()))),
	)
	r.coordinator = turns.NewCoordinator(session, capability,
		turns.WithBus(bus),
		turns.WithLogger(roomLogger),
		turns.WithAgentConfig(cfg.Agents),
		turns.WithRand(rand.New(rand.NewSource(rng.Int63()))),
	)

	bus.SubscribeAll(r.dispatch)
	return r
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Name returns the display name.
func (r *Room) Name() string { return r.name }

// CreatedAt returns the creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Session returns the room's game session.
func (r *Room) Session() *game.Session { return r.session }

// Status returns the lobby status.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Info describes a room for lobby listings.
type Info struct {
	Code          string `json:"room_code"`
	Name          string `json:"room_name"`
	CurrentHumans int    `json:"current_humans"`
	MaxHumans     int    `json:"max_humans"`
	TotalPlayers  int    `json:"total_players"`
	Status        string `json:"room_status"`
	CreatedAt     int64  `json:"created_at"`
}

// Info returns the room's lobby metadata.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		Code:          r.code,
		Name:          r.name,
		CurrentHumans: len(r.humans),
		MaxHumans:     r.maxHumans,
		TotalPlayers:  r.totalPlayers,
		Status:        string(r.status),
		CreatedAt:     r.createdAt.Unix(),
	}
}

// PlayerView is one player in a polled state snapshot.
type PlayerView struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Eliminated bool   `json:"eliminated"`
	Voted      bool   `json:"voted"`
}

// MessageView is one chat message in a polled state snapshot.
type MessageView struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// StateView is a complete snapshot for polling clients.
type StateView struct {
	Phase       string            `json:"phase"`
	Round       int               `json:"round"`
	Topic       string            `json:"topic"`
	Players     []PlayerView      `json:"players"`
	ChatHistory []MessageView     `json:"chat_history"`
	Votes       map[string]string `json:"votes"`
	Typing      []string          `json:"typing_players"`
	Winner      string            `json:"winner,omitempty"`
	Suspect     string            `json:"selected_suspect,omitempty"`
	SuspectRole string            `json:"suspect_role,omitempty"`
}

// State snapshots the room for polling clients.
func (r *Room) State() StateView {
	votes := r.session.Votes()
	players := r.session.Players()

	view := StateView{
		Phase:   r.session.Phase().String(),
		Round:   r.session.Round(),
		Topic:   r.session.Topic(),
		Players: make([]PlayerView, len(players)),
		Votes:   votes,
		Typing:  r.typingPlayers(),
	}
	for i, p := range players {
		_, voted := votes[p.ID]
		view.Players[i] = PlayerView{
			ID:         p.ID,
			Role:       p.Role.String(),
			Eliminated: p.Eliminated,
			Voted:      voted,
		}
	}
	for _, m := range r.session.ChatLog() {
		view.ChatHistory = append(view.ChatHistory, MessageView{Sender: m.Sender, Message: m.Body})
	}
	if outcome := r.session.Outcome(); outcome != nil {
		view.Winner = outcome.Winner.String()
		view.Suspect = outcome.Suspect
		view.SuspectRole = outcome.Role.String()
	}
	return view
}

// typingPlayers returns the players currently typing, sorted for stable
// snapshots.
func (r *Room) typingPlayers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.typing))
	for id := range r.typing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Join assigns the next reserved player number to a joining human. The
// first human to join becomes the room's creator. When the last human
// slot fills, the game starts.
func (r *Room) Join(ctx context.Context) (playerID string, started bool, err error) {
	r.mu.Lock()

	switch r.status {
	case StatusInProgress:
		r.mu.Unlock()
		return "", false, errors.ErrGameInProgress
	case StatusCompleted:
		r.mu.Unlock()
		return "", false, errors.ErrGameCompleted
	}
	if len(r.humans) >= r.maxHumans {
		r.mu.Unlock()
		return "", false, errors.ErrRoomFull
	}

	var number int
	if len(r.availableNumbers) > 0 {
		number = r.availableNumbers[0]
		r.availableNumbers = r.availableNumbers[1:]
	} else {
		// Reserved numbers exhausted; hand out a random high number.
		number = 100 + r.rng.Intn(900)
	}
	playerID = fmt.Sprintf("Player %d", number)

	if err := r.session.AddHuman(playerID); err != nil {
		r.availableNumbers = append([]int{number}, r.availableNumbers...)
		r.mu.Unlock()
		return "", false, err
	}
	r.humans = append(r.humans, playerID)
	if len(r.humans) == 1 {
		r.creatorID = playerID
	}
	full := len(r.humans) >= r.maxHumans
	if full {
		r.status = StatusInProgress
	}
	r.mu.Unlock()

	r.logger.Info("player joined", "player", playerID, "humans", len(r.humans))
	r.bus.Publish(event.NewPlayerJoinedEvent(r.code, playerID, r.playerIDs()))

	if full {
		r.startGame(ctx)
	}
	return playerID, full, nil
}

// startGame wires up and starts the coordinator and controller. The
// coordinator starts first so it sees the controller's opening events.
// The game outlives the join request that triggered it, so its context
// is detached from the caller's; only Stop cancels it.
func (r *Room) startGame(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	gameCtx := r.ctx
	r.mu.Unlock()

	r.logger.Info("game starting",
		"humans", r.maxHumans, "total", r.totalPlayers,
		"ruleset", r.cfg.Game.Ruleset)
	r.coordinator.Start(gameCtx)
	r.controller.Start(gameCtx)
}

// Leave handles a player leaving. A creator leaving, or any leave while
// the room is still waiting, terminates the room. A player leaving a
// running game is marked eliminated, never deleted; an emptied room is
// torn down.
func (r *Room) Leave(playerID string) (LeaveAction, error) {
	r.mu.Lock()
	isCreator := playerID == r.creatorID
	waiting := r.status == StatusWaiting

	if isCreator || waiting {
		r.mu.Unlock()
		reason := "cancelled"
		message := "Room was cancelled"
		if isCreator {
			reason = "creator_left"
			message = "Room has been terminated"
		}
		r.bus.Publish(event.NewRoomTerminatedEvent(r.code, reason))
		r.broadcaster.Broadcast(transport.NewFrame("room_terminated", map[string]any{
			"message": message,
		}))
		r.Stop()
		return LeaveTerminated, nil
	}

	found := false
	for i, id := range r.humans {
		if id == playerID {
			r.humans = append(r.humans[:i], r.humans[i+1:]...)
			found = true
			break
		}
	}
	delete(r.typing, playerID)
	empty := len(r.humans) == 0
	r.mu.Unlock()

	if !found {
		return "", errors.ErrPlayerNotFound
	}

	r.session.Eliminate(playerID)
	r.broadcaster.Remove(playerID)
	r.bus.Publish(event.NewPlayerLeftEvent(r.code, playerID))

	// Eliminating the leaver drops their outstanding ballot; if everyone
	// left is already counted the phase must not wait out the timer.
	r.controller.ResolveIfComplete()

	if empty {
		r.Stop()
		return LeaveDeleted, nil
	}
	return LeaveRemoved, nil
}

// Connect attaches a live client connection and replays the state the
// client needs to render the room: roster, topic, phase, and chat history.
func (r *Room) Connect(rec transport.Recipient) {
	r.broadcaster.Add(rec)

	_ = rec.Send(transport.NewFrame("player_list", map[string]any{"players": r.playerIDs()}))
	_ = rec.Send(transport.NewFrame("topic", map[string]any{"topic": r.session.Topic()}))
	_ = rec.Send(transport.NewFrame("phase", map[string]any{
		"phase":   r.session.Phase().String(),
		"message": fmt.Sprintf("Currently in %s", r.session.Phase()),
	}))
	for _, m := range r.session.ChatLog() {
		_ = rec.Send(transport.NewFrame("message", map[string]any{
			"sender":  m.Sender,
			"message": m.Body,
		}))
	}
}

// Disconnect detaches a client connection. The room itself stays alive;
// teardown is a registry decision.
func (r *Room) Disconnect(playerID string) {
	r.broadcaster.Remove(playerID)
}

// Idle reports whether the room has no live connections.
func (r *Room) Idle() bool {
	return r.broadcaster.Empty()
}

// HandleMessage commits a human chat message.
func (r *Room) HandleMessage(sender, body string) error {
	_, err := r.controller.HandleMessage(sender, body)
	return err
}

// HandleVote commits a human vote.
func (r *Room) HandleVote(voter, target string) error {
	return r.controller.HandleVote(voter, target)
}

// HandleTyping relays a human typing indicator.
func (r *Room) HandleTyping(playerID string, typing bool) {
	r.bus.Publish(event.NewTypingStatusEvent(r.code, playerID, typing))
}

// Stop tears the room down: coordinator, controller, and all connections.
func (r *Room) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	cancel := r.cancel
	r.mu.Unlock()

	if started {
		r.coordinator.Stop()
		r.controller.Stop()
	}
	if cancel != nil {
		cancel()
	}
	r.broadcaster.CloseAll()
	r.bus.Clear()
}

func (r *Room) playerIDs() []string {
	players := r.session.Players()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// dispatch translates bus events into client frames. This is the single
// seam between the orchestration core and the wire format.
func (r *Room) dispatch(e event.Event) {
	switch ev := e.(type) {
	case event.PlayerJoinedEvent:
		r.broadcaster.Broadcast(transport.NewFrame("player_list", map[string]any{
			"players": ev.Players,
		}))
	case event.PlayerLeftEvent:
		r.broadcaster.Broadcast(transport.NewFrame("player_list", map[string]any{
			"players": r.playerIDs(),
		}))
	case event.TopicAnnouncedEvent:
		r.broadcaster.Broadcast(transport.NewFrame("topic", map[string]any{
			"topic": ev.Topic,
		}))
	case event.PhaseChangedEvent:
		r.broadcaster.Broadcast(transport.NewFrame("phase", map[string]any{
			"phase":   ev.Phase,
			"message": ev.Message,
		}))
	case event.ChatMessageEvent:
		r.broadcaster.Broadcast(transport.NewFrame("message", map[string]any{
			"sender":  ev.Sender,
			"message": ev.Body,
		}))
	case event.TypingStatusEvent:
		r.mu.Lock()
		if ev.Typing {
			r.typing[ev.PlayerID] = true
		} else {
			delete(r.typing, ev.PlayerID)
		}
		r.mu.Unlock()
		status := "stop"
		if ev.Typing {
			status = "start"
		}
		r.broadcaster.Broadcast(transport.NewFrame("typing", map[string]any{
			"player": ev.PlayerID,
			"status": status,
		}))
	case event.VoteRecordedEvent:
		r.broadcaster.Broadcast(transport.NewFrame("voted", map[string]any{
			"player": ev.VoterID,
		}))
	case event.VoteResultEvent:
		r.broadcaster.Broadcast(transport.NewFrame("voting_result", map[string]any{
			"suspect":     ev.Suspect,
			"role":        ev.Role,
			"vote_counts": ev.VoteCounts,
		}))
		if game.Ruleset(r.cfg.Game.Ruleset) == game.RulesetElimination {
			r.broadcaster.Broadcast(transport.NewFrame("elimination", map[string]any{
				"eliminated": ev.Suspect,
				"role":       ev.Role,
			}))
		}
	case event.RoundAdvancedEvent:
		r.broadcaster.Broadcast(transport.NewFrame("new_round", map[string]any{
			"round": ev.Round,
			"topic": ev.Topic,
		}))
	case event.GameOverEvent:
		r.broadcaster.Broadcast(transport.NewFrame("game_over", map[string]any{
			"winner": ev.Winner,
		}))
		r.finalize()
	}
}

// finalize marks the room completed and records the game summary. Stats
// writes are fire-and-forget; a sink failure only logs.
func (r *Room) finalize() {
	r.mu.Lock()
	r.status = StatusCompleted
	r.mu.Unlock()

	outcome := r.session.Outcome()
	if outcome == nil {
		return
	}
	summary := stats.Summary{
		ID:          uuid.NewString(),
		RoomCode:    r.code,
		Topic:       r.session.Topic(),
		Ruleset:     game.Ruleset(r.cfg.Game.Ruleset),
		Winner:      outcome.Winner,
		Suspect:     outcome.Suspect,
		SuspectRole: outcome.Role,
		Rounds:      r.session.Round(),
		StartedAt:   r.session.StartedAt(),
		EndedAt:     time.Now(),
		Players:     r.session.Players(),
		ChatLog:     r.session.ChatLog(),
		Votes:       r.session.Votes(),
		VoteCounts:  outcome.VoteCounts,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.sink.Record(ctx, summary); err != nil {
			r.logger.Warn("stats write failed", "error", err)
		}
	}()
}
