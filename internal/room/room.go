package room

import (
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/tictactoe"
)

// State is a consistent snapshot of a room taken under its lock. Mutating
// operations return one so broadcasts never observe a half-applied change.
type State struct {
	ID        string          `json:"id"`
	Private   bool            `json:"private,omitempty"`
	Players   []entity.Player `json:"players"`
	Game      entity.Game     `json:"game"`
	CreatedAt time.Time       `json:"created_at"`
}

// Room is one match plus its membership. All exported methods lock the room;
// the lock is never held across a socket write.
type Room struct {
	id        string
	private   bool
	createdAt time.Time

	mu      sync.Mutex
	players []*entity.Player
	game    *entity.Game

	capacity  int
	timeout   time.Duration
	timer     *time.Timer
	timerGen  int
	onTimeout func(State)
}

// NewRoom - creates an empty waiting room. onTimeout is invoked, without the
// room lock held, when an inactivity timeout force-ends an active game.
func NewRoom(id string, private bool, capacity int, timeout time.Duration, onTimeout func(State)) *Room {
	return &Room{
		id:        id,
		private:   private,
		createdAt: time.Now(),
		game:      entity.NewGame(),
		capacity:  capacity,
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

func (that *Room) ID() string { return that.id }

func (that *Room) Private() bool { return that.private }

func (that *Room) CreatedAt() time.Time { return that.createdAt }

// AddPlayer - appends a player. Reaching capacity starts the game and arms
// the inactivity timeout.
func (that *Room) AddPlayer(player *entity.Player) (State, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.players) >= that.capacity {
		return State{}, apperror.ErrRoomFull
	}

	for _, existing := range that.players {
		if existing.Mark == player.Mark {
			return State{}, apperror.ErrMarkTaken
		}
	}

	player.JoinedAt = time.Now()
	that.players = append(that.players, player)

	if len(that.players) == that.capacity {
		that.game.Status = entity.StatusActive
		that.game.Turn = entity.PlayerX
		that.armTimerLocked()
	}

	return that.stateLocked(), nil
}

// RemovePlayer - removes the matching player. A departure mid-game ends the
// game with no winner rather than pausing it.
func (that *Room) RemovePlayer(connID string) (st State, wasActive, empty bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, player := range that.players {
		if player.ID == connID {
			that.players = append(that.players[:i], that.players[i+1:]...)
			break
		}
	}

	wasActive = that.game.IsActive()
	if wasActive {
		that.game.Status = entity.StatusFinished
		that.game.Turn = ""
		that.stopTimerLocked()
	}

	return that.stateLocked(), wasActive, len(that.players) == 0
}

// MakeTurn - applies a move through the engine and stops the timeout once
// the game is decided.
func (that *Room) MakeTurn(connID string, cell int) (State, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.playerLocked(connID)
	if player == nil {
		return State{}, apperror.ErrNotAMember
	}

	if err := tictactoe.MakeTurn(that.game, player.Mark, cell); err != nil {
		return State{}, err
	}

	if that.game.IsFinished() {
		that.stopTimerLocked()
	}

	return that.stateLocked(), nil
}

// Reset - clears the board and ready flags. Any current member may reset at
// any time; with both players still present the game restarts immediately.
func (that *Room) Reset() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopTimerLocked()
	that.game = entity.NewGame()

	for _, player := range that.players {
		player.Ready = false
	}

	if len(that.players) == that.capacity {
		that.game.Status = entity.StatusActive
		that.armTimerLocked()
	}

	return that.stateLocked()
}

// ToggleReady - flips a player's ready flag. Purely informational, games
// start automatically at capacity.
func (that *Room) ToggleReady(connID string) (State, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player := that.playerLocked(connID)
	if player == nil {
		return State{}, apperror.ErrNotAMember
	}

	player.Ready = !player.Ready

	return that.stateLocked(), nil
}

// State - returns a consistent snapshot of the room.
func (that *Room) State() State {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.stateLocked()
}

func (that *Room) PlayerCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.players)
}

func (that *Room) playerLocked(connID string) *entity.Player {
	for _, player := range that.players {
		if player.ID == connID {
			return player
		}
	}
	return nil
}

func (that *Room) stateLocked() State {
	players := make([]entity.Player, 0, len(that.players))
	for _, player := range that.players {
		players = append(players, *player)
	}

	return State{
		ID:        that.id,
		Private:   that.private,
		Players:   players,
		Game:      *that.game,
		CreatedAt: that.createdAt,
	}
}

// armTimerLocked - schedules the inactivity timeout for the current game.
// The generation counter makes a stale fire a no-op.
func (that *Room) armTimerLocked() {
	that.stopTimerLocked()

	if that.timeout <= 0 {
		return
	}

	that.timerGen++
	gen := that.timerGen
	that.timer = time.AfterFunc(that.timeout, func() {
		that.expireGame(gen)
	})
}

func (that *Room) stopTimerLocked() {
	if that.timer != nil {
		that.timer.Stop()
		that.timer = nil
	}
	that.timerGen++
}

// expireGame - force-ends a game that outlived its inactivity timeout and
// resets the room to waiting, keeping the players seated.
func (that *Room) expireGame(gen int) {
	that.mu.Lock()

	if gen != that.timerGen || !that.game.IsActive() {
		that.mu.Unlock()
		return
	}

	that.timer = nil
	that.game = entity.NewGame()
	for _, player := range that.players {
		player.Ready = false
	}

	st := that.stateLocked()
	that.mu.Unlock()

	if that.onTimeout != nil {
		that.onTimeout(st)
	}
}
