// Package registry holds every active room, keyed by room code. All room
// lifecycle (create, lookup, teardown) goes through it; nothing else in
// the process keeps room references of its own.
package registry

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/daehan-lim/humanhunter/internal/agent"
	"github.com/daehan-lim/humanhunter/internal/config"
	"github.com/daehan-lim/humanhunter/internal/errors"
	"github.com/daehan-lim/humanhunter/internal/logging"
	"github.com/daehan-lim/humanhunter/internal/room"
	"github.com/daehan-lim/humanhunter/internal/stats"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// Registry is the directory of active rooms.
type Registry struct {
	capability agent.Capability
	sink       stats.Sink
	cfg        *config.Config
	logger     *logging.Logger

	mu    sync.RWMutex
	rooms map[string]*room.Room
	rng   *rand.Rand
}

// New creates an empty registry.
func New(capability agent.Capability, sink stats.Sink, cfg *config.Config, logger *logging.Logger, rng *rand.Rand) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		capability: capability,
		sink:       sink,
		cfg:        cfg,
		logger:     logger,
		rooms:      make(map[string]*room.Room),
		rng:        rng,
	}
}

// Create makes a new waiting room. maxHumans and totalPlayers are
// validated against the configured bounds; totalPlayers of 0 uses the
// default agent count plus the human slots.
func (r *Registry) Create(maxHumans, totalPlayers int) (*room.Room, error) {
	if totalPlayers == 0 {
		totalPlayers = maxHumans + r.cfg.Game.DefaultAgents
	}
	if maxHumans < 1 || maxHumans > r.cfg.Game.MaxHumans {
		return nil, errors.NewValidationError("max_humans out of range").
			WithField("max_humans").WithValue(maxHumans)
	}
	if totalPlayers < maxHumans {
		return nil, errors.NewValidationError("total_players must be >= max_humans").
			WithField("total_players").WithValue(totalPlayers)
	}
	if totalPlayers > r.cfg.Game.MaxPlayers {
		return nil, errors.NewValidationError("total_players out of range").
			WithField("total_players").WithValue(totalPlayers)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.uniqueCodeLocked()
	rm := room.New(code, maxHumans, totalPlayers, r.capability, r.sink,
		r.cfg, r.logger, rand.New(rand.NewSource(r.rng.Int63())))
	r.rooms[code] = rm

	r.logger.Info("room created",
		"room", code, "max_humans", maxHumans, "total_players", totalPlayers)
	return rm, nil
}

// Get returns the room for a code.
func (r *Registry) Get(code string) (*room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[code]
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return rm, nil
}

// ListWaiting returns lobby metadata for waiting rooms, newest first,
// paginated.
func (r *Registry) ListWaiting(page, perPage int) (infos []room.Info, total int) {
	if perPage <= 0 {
		perPage = 10
	}

	r.mu.RLock()
	all := make([]room.Info, 0, len(r.rooms))
	for _, rm := range r.rooms {
		if rm.Status() == room.StatusWaiting {
			all = append(all, rm.Info())
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].Code < all[j].Code
	})

	total = len(all)
	start := page * perPage
	if start >= total {
		return []room.Info{}, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return all[start:end], total
}

// Leave processes a leave through the room and removes the room from the
// registry when the leave terminated or deleted it.
func (r *Registry) Leave(code, playerID string) (room.LeaveAction, error) {
	rm, err := r.Get(code)
	if err != nil {
		return "", err
	}

	action, err := rm.Leave(playerID)
	if err != nil {
		return "", err
	}
	if action == room.LeaveTerminated || action == room.LeaveDeleted {
		r.remove(code)
	}
	return action, nil
}

// Remove tears a room down and drops it from the registry.
func (r *Registry) Remove(code string) {
	rm, err := r.Get(code)
	if err != nil {
		return
	}
	rm.Stop()
	r.remove(code)
}

// Count returns the number of active rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Shutdown stops every room.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*room.Room)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.Stop()
	}
}

func (r *Registry) remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

// uniqueCodeLocked generates a room code not currently in use. Caller must
// hold the write lock.
func (r *Registry) uniqueCodeLocked() string {
	for {
		buf := make([]byte, codeLength)
		for i := range buf {
			buf[i] = codeAlphabet[r.rng.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.rooms[code]; !taken {
			return code
		}
	}
}
