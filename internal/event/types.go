package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "phase.changed", "chat.message")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Room Lifecycle Events
// -----------------------------------------------------------------------------

// RoomTerminatedEvent is emitted when a room is torn down before or after a game.
type RoomTerminatedEvent struct {
	baseEvent
	RoomCode string
	Reason   string // "creator_left", "cancelled", "empty"
}

// NewRoomTerminatedEvent creates a RoomTerminatedEvent.
func NewRoomTerminatedEvent(roomCode, reason string) RoomTerminatedEvent {
	return RoomTerminatedEvent{
		baseEvent: newBaseEvent("room.terminated"),
		RoomCode:  roomCode,
		Reason:    reason,
	}
}

// PlayerJoinedEvent is emitted when a human joins a waiting room.
type PlayerJoinedEvent struct {
	baseEvent
	RoomCode string
	PlayerID string
	Players  []string // full roster after the join
}

// NewPlayerJoinedEvent creates a PlayerJoinedEvent.
func NewPlayerJoinedEvent(roomCode, playerID string, players []string) PlayerJoinedEvent {
	return PlayerJoinedEvent{
		baseEvent: newBaseEvent("player.joined"),
		RoomCode:  roomCode,
		PlayerID:  playerID,
		Players:   players,
	}
}

// PlayerLeftEvent is emitted when a human leaves a waiting room.
type PlayerLeftEvent struct {
	baseEvent
	RoomCode string
	PlayerID string
}

// NewPlayerLeftEvent creates a PlayerLeftEvent.
func NewPlayerLeftEvent(roomCode, playerID string) PlayerLeftEvent {
	return PlayerLeftEvent{
		baseEvent: newBaseEvent("player.left"),
		RoomCode:  roomCode,
		PlayerID:  playerID,
	}
}

// -----------------------------------------------------------------------------
// Game Flow Events
// -----------------------------------------------------------------------------

// TopicAnnouncedEvent is emitted when a round's discussion topic is selected.
type TopicAnnouncedEvent struct {
	baseEvent
	RoomCode string
	Round    int
	Topic    string
}

// NewTopicAnnouncedEvent creates a TopicAnnouncedEvent.
func NewTopicAnnouncedEvent(roomCode string, round int, topic string) TopicAnnouncedEvent {
	return TopicAnnouncedEvent{
		baseEvent: newBaseEvent("topic.announced"),
		RoomCode:  roomCode,
		Round:     round,
		Topic:     topic,
	}
}

// PhaseChangedEvent is emitted when the phase controller commits a transition.
type PhaseChangedEvent struct {
	baseEvent
	RoomCode string
	Phase    string
	Message  string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(roomCode, phase, message string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent("phase.changed"),
		RoomCode:  roomCode,
		Phase:     phase,
		Message:   message,
	}
}

// ChatMessageEvent is emitted when a message is committed to the chat log.
type ChatMessageEvent struct {
	baseEvent
	RoomCode string
	Sender   string
	Body     string
}

// NewChatMessageEvent creates a ChatMessageEvent.
func NewChatMessageEvent(roomCode, sender, body string) ChatMessageEvent {
	return ChatMessageEvent{
		baseEvent: newBaseEvent("chat.message"),
		RoomCode:  roomCode,
		Sender:    sender,
		Body:      body,
	}
}

// TypingStatusEvent is emitted when a player starts or stops typing.
type TypingStatusEvent struct {
	baseEvent
	RoomCode string
	PlayerID string
	Typing   bool
}

// NewTypingStatusEvent creates a TypingStatusEvent.
func NewTypingStatusEvent(roomCode, playerID string, typing bool) TypingStatusEvent {
	return TypingStatusEvent{
		baseEvent: newBaseEvent("typing.status"),
		RoomCode:  roomCode,
		PlayerID:  playerID,
		Typing:    typing,
	}
}

// VoteRecordedEvent is emitted when a vote is accepted. The target is
// deliberately omitted so adapters can announce who voted without
// revealing the ballot.
type VoteRecordedEvent struct {
	baseEvent
	RoomCode string
	VoterID  string
}

// NewVoteRecordedEvent creates a VoteRecordedEvent.
func NewVoteRecordedEvent(roomCode, voterID string) VoteRecordedEvent {
	return VoteRecordedEvent{
		baseEvent: newBaseEvent("vote.recorded"),
		RoomCode:  roomCode,
		VoterID:   voterID,
	}
}

// VoteResultEvent is emitted when resolution selects a suspect.
type VoteResultEvent struct {
	baseEvent
	RoomCode   string
	Suspect    string
	Role       string
	VoteCounts map[string]int
}

// NewVoteResultEvent creates a VoteResultEvent.
func NewVoteResultEvent(roomCode, suspect, role string, voteCounts map[string]int) VoteResultEvent {
	return VoteResultEvent{
		baseEvent:  newBaseEvent("vote.result"),
		RoomCode:   roomCode,
		Suspect:    suspect,
		Role:       role,
		VoteCounts: voteCounts,
	}
}

// RoundAdvancedEvent is emitted when a new round begins after resolution.
type RoundAdvancedEvent struct {
	baseEvent
	RoomCode string
	Round    int
	Topic    string
}

// NewRoundAdvancedEvent creates a RoundAdvancedEvent.
func NewRoundAdvancedEvent(roomCode string, round int, topic string) RoundAdvancedEvent {
	return RoundAdvancedEvent{
		baseEvent: newBaseEvent("round.advanced"),
		RoomCode:  roomCode,
		Round:     round,
		Topic:     topic,
	}
}

// GameOverEvent is emitted when the session reaches its terminal phase.
type GameOverEvent struct {
	baseEvent
	RoomCode string
	Winner   string // "human" or "agent"
	Suspect  string
	Role     string
}

// NewGameOverEvent creates a GameOverEvent.
func NewGameOverEvent(roomCode, winner, suspect, role string) GameOverEvent {
	return GameOverEvent{
		baseEvent: newBaseEvent("game.over"),
		RoomCode:  roomCode,
		Winner:    winner,
		Suspect:   suspect,
		Role:      role,
	}
}
