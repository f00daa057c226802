// Package transport delivers outbound game events to connected clients.
// Delivery is best-effort: a recipient that fails a send is pruned from the
// room and the broadcast continues for everyone else.
package transport

import (
	"sync"

	"github.com/daehan-lim/humanhunter/internal/logging"
)

// Frame is one outbound JSON message. Every frame carries a "type" field;
// the rest of the keys depend on the type.
type Frame map[string]any

// NewFrame builds a frame of the given type with extra fields merged in.
func NewFrame(frameType string, fields map[string]any) Frame {
	f := Frame{"type": frameType}
	for k, v := range fields {
		f[k] = v
	}
	return f
}

// Recipient is one connected client.
type Recipient interface {
	// PlayerID identifies the player this connection belongs to.
	PlayerID() string

	// Send delivers one frame. An error marks the recipient dead.
	Send(Frame) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Broadcaster fans frames out to a room's live recipients.
type Broadcaster struct {
	logger *logging.Logger

	mu         sync.RWMutex
	recipients map[string]Recipient
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Broadcaster{
		logger:     logger,
		recipients: make(map[string]Recipient),
	}
}

// Add registers a recipient, replacing any previous connection for the
// same player.
func (b *Broadcaster) Add(r Recipient) {
	b.mu.Lock()
	prev, had := b.recipients[r.PlayerID()]
	b.recipients[r.PlayerID()] = r
	b.mu.Unlock()

	if had {
		prev.Close()
	}
}

// Remove unregisters and closes the recipient for a player.
func (b *Broadcaster) Remove(playerID string) {
	b.mu.Lock()
	r, ok := b.recipients[playerID]
	delete(b.recipients, playerID)
	b.mu.Unlock()

	if ok {
		r.Close()
	}
}

// Broadcast sends a frame to every live recipient. Failed recipients are
// pruned; one bad connection never affects the others.
func (b *Broadcaster) Broadcast(f Frame) {
	b.mu.RLock()
	targets := make([]Recipient, 0, len(b.recipients))
	for _, r := range b.recipients {
		targets = append(targets, r)
	}
	b.mu.RUnlock()

	for _, r := range targets {
		if err := r.Send(f); err != nil {
			b.logger.Debug("pruning dead recipient",
				"player", r.PlayerID(), "error", err)
			b.Remove(r.PlayerID())
		}
	}
}

// Count returns the number of live recipients.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.recipients)
}

// Empty reports whether no recipients remain. Rooms tear down when their
// live-recipient set empties.
func (b *Broadcaster) Empty() bool {
	return b.Count() == 0
}

// CloseAll closes every recipient and empties the set.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	targets := b.recipients
	b.recipients = make(map[string]Recipient)
	b.mu.Unlock()

	for _, r := range targets {
		r.Close()
	}
}
