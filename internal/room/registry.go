package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// Summary is one row of the public room listing.
type Summary struct {
	ID          string    `json:"id"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	Created     time.Time `json:"created"`
}

// Registry owns every live room and the connection-to-room mapping. It is an
// explicit, injectable service so tests construct isolated instances.
type Registry struct {
	logger *slog.Logger
	conf   config.Room

	mu       sync.RWMutex
	rooms    map[string]*Room
	connRoom map[string]string

	onTimeout func(State)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRegistry - creates a registry and starts the background sweep of stale
// empty rooms. Call Stop to terminate it.
func NewRegistry(logger *slog.Logger, conf config.Room, onTimeout func(State)) *Registry {
	registry := &Registry{
		logger:    logger.With("component", "registry"),
		conf:      conf,
		rooms:     make(map[string]*Room),
		connRoom:  make(map[string]string),
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
	}

	registry.wg.Add(1)
	go registry.sweepLoop()

	return registry
}

// Departure describes the room a connection left as a side effect of
// joining another one, so the caller can notify its remaining member.
type Departure struct {
	State     State
	WasActive bool
}

// JoinOrCreate - looks up or lazily creates a room and seats the player in
// it. A connection already seated elsewhere leaves that room first; one
// already seated in the requested room is rejected, never seated twice.
func (that *Registry) JoinOrCreate(roomID, connID string, player *entity.Player, isPrivate bool) (*Room, State, *Departure, error) {
	log := that.logger.With("method", "JoinOrCreate")

	that.mu.RLock()
	prevRoomID, seated := that.connRoom[connID]
	that.mu.RUnlock()

	var departure *Departure
	if seated {
		if prevRoomID == roomID {
			return nil, State{}, nil, apperror.ErrAlreadyInRoom
		}

		prevState, wasActive, err := that.Leave(connID)
		if err != nil {
			log.Error("failed to leave previous room", "roomID", prevRoomID, "error", err)
		} else if len(prevState.Players) > 0 {
			departure = &Departure{State: prevState, WasActive: wasActive}
		}
	}

	that.mu.Lock()
	existingRoom, ok := that.rooms[roomID]
	if !ok {
		// The first joiner's flag fixes the room's visibility.
		existingRoom = NewRoom(roomID, isPrivate, that.conf.Capacity, that.conf.InactivityTimeout, that.onTimeout)
		that.rooms[roomID] = existingRoom
	}
	that.mu.Unlock()

	st, err := existingRoom.AddPlayer(player)
	if err != nil {
		that.deleteIfEmpty(roomID)
		return nil, State{}, departure, err
	}

	that.mu.Lock()
	that.connRoom[connID] = roomID
	that.mu.Unlock()

	log.Info("player joined room", "roomID", roomID, "connID", connID, "players", len(st.Players))

	return existingRoom, st, departure, nil
}

// Leave - removes the connection's player from its room and deletes the room
// once empty.
func (that *Registry) Leave(connID string) (st State, wasActive bool, err error) {
	that.mu.Lock()
	roomID, ok := that.connRoom[connID]
	if !ok {
		that.mu.Unlock()
		return State{}, false, apperror.ErrNotAMember
	}

	delete(that.connRoom, connID)
	existingRoom := that.rooms[roomID]
	that.mu.Unlock()

	if existingRoom == nil {
		return State{}, false, apperror.ErrRoomNotFound
	}

	st, wasActive, empty := existingRoom.RemovePlayer(connID)
	if empty {
		that.mu.Lock()
		delete(that.rooms, roomID)
		that.mu.Unlock()

		that.logger.Info("empty room deleted", "roomID", roomID)
	}

	return st, wasActive, nil
}

// RoomByConn - resolves the room a connection is seated in.
func (that *Registry) RoomByConn(connID string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	roomID, ok := that.connRoom[connID]
	if !ok {
		return nil, apperror.ErrNotAMember
	}

	existingRoom, ok := that.rooms[roomID]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return existingRoom, nil
}

// ListPublic - public rooms that still have a free seat. Order is not
// guaranteed.
func (that *Registry) ListPublic() []Summary {
	that.mu.RLock()
	defer that.mu.RUnlock()

	summaries := make([]Summary, 0, len(that.rooms))
	for _, existingRoom := range that.rooms {
		if existingRoom.Private() {
			continue
		}

		count := existingRoom.PlayerCount()
		if count >= that.conf.Capacity {
			continue
		}

		summaries = append(summaries, Summary{
			ID:          existingRoom.ID(),
			PlayerCount: count,
			MaxPlayers:  that.conf.Capacity,
			Created:     existingRoom.CreatedAt(),
		})
	}

	return summaries
}

// SweepStale - deletes empty rooms older than the threshold. Normally
// redundant with eager deletion in Leave.
func (that *Registry) SweepStale(now time.Time, threshold time.Duration) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for roomID, existingRoom := range that.rooms {
		if existingRoom.PlayerCount() > 0 {
			continue
		}

		if now.Sub(existingRoom.CreatedAt()) > threshold {
			delete(that.rooms, roomID)
			that.logger.Info("stale room swept", "roomID", roomID)
		}
	}
}

// Stop - terminates the sweep loop.
func (that *Registry) Stop() {
	close(that.stopCh)
	that.wg.Wait()
}

func (that *Registry) sweepLoop() {
	defer that.wg.Done()

	ticker := time.NewTicker(that.conf.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			that.SweepStale(time.Now(), that.conf.StaleThreshold)
		case <-that.stopCh:
			return
		}
	}
}

func (that *Registry) deleteIfEmpty(roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	existingRoom, ok := that.rooms[roomID]
	if ok && existingRoom.PlayerCount() == 0 {
		delete(that.rooms, roomID)
	}
}
