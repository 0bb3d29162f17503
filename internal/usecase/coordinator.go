package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

const (
	ActionJoinSuccess       = "joinSuccess"
	ActionRoomUpdate        = "roomUpdate"
	ActionGameStart         = "gameStart"
	ActionMoveUpdate        = "moveUpdate"
	ActionGameEnd           = "gameEnd"
	ActionGameReset         = "gameReset"
	ActionPlayerReadyUpdate = "playerReadyUpdate"
	ActionPlayerLeft        = "playerLeft"
	ActionChatMessage       = "chatMessage"
	ActionGameTimeout       = "gameTimeout"
)

// Event is one outbound message addressed to a set of connections.
type Event struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster performs the actual socket writes. The coordinator never
// touches a connection itself, which keeps it testable without a network.
type Broadcaster interface {
	Send(connIDs []string, event Event)
}

// JoinRequest carries the joinRoom payload after transport decoding.
type JoinRequest struct {
	Room      string `json:"room"`
	Name      string `json:"name"`
	Mark      string `json:"symbol"`
	AvatarURL string `json:"avatar,omitempty"`
	IsPrivate bool   `json:"isPrivate,omitempty"`
}

// RoomPayload wraps a room snapshot for broadcast.
type RoomPayload struct {
	Room room.State `json:"room"`
}

// ChatPayload is one broadcast chat message. Chat is never stored.
type ChatPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinator routes client events to the registry and fans the resulting
// room snapshots out to every member of the affected room.
type Coordinator struct {
	logger      *slog.Logger
	conf        config.Room
	registry    *room.Registry
	broadcaster Broadcaster
}

func NewCoordinator(logger *slog.Logger, conf config.Room, broadcaster Broadcaster) *Coordinator {
	coordinator := &Coordinator{
		logger:      logger.With("component", "coordinator"),
		conf:        conf,
		broadcaster: broadcaster,
	}

	coordinator.registry = room.NewRegistry(logger, conf, coordinator.handleTimeout)

	return coordinator
}

// Stop - terminates the registry's background sweep.
func (that *Coordinator) Stop() {
	that.registry.Stop()
}

// ListRooms - public rooms with a free seat, for the query surface.
func (that *Coordinator) ListRooms() []room.Summary {
	return that.registry.ListPublic()
}

// JoinRoom - seats the connection in the requested room, creating it when
// unknown. The caller gets joinSuccess; the room gets roomUpdate and, once
// both seats are taken, gameStart.
func (that *Coordinator) JoinRoom(connID string, req JoinRequest) error {
	if err := that.validateJoin(req); err != nil {
		return err
	}

	player := &entity.Player{
		ID:        connID,
		Name:      strings.TrimSpace(req.Name),
		AvatarURL: req.AvatarURL,
		Mark:      req.Mark,
	}

	_, st, departure, err := that.registry.JoinOrCreate(req.Room, connID, player, req.IsPrivate)
	that.notifyDeparture(departure)
	if err != nil {
		return err
	}

	that.broadcaster.Send([]string{connID}, Event{Action: ActionJoinSuccess, Payload: RoomPayload{Room: st}})
	that.broadcaster.Send(memberIDs(st), Event{Action: ActionRoomUpdate, Payload: RoomPayload{Room: st}})

	if st.Game.IsActive() {
		that.broadcaster.Send(memberIDs(st), Event{Action: ActionGameStart, Payload: RoomPayload{Room: st}})
	}

	return nil
}

// MakeMove - applies a move for the connection's seat. The payload symbol is
// not trusted; the seated mark decides whose move it is.
func (that *Coordinator) MakeMove(connID, roomID string, cell int) error {
	currentRoom, err := that.roomFor(connID, roomID)
	if err != nil {
		return err
	}

	st, err := currentRoom.MakeTurn(connID, cell)
	if err != nil {
		return err
	}

	action := ActionMoveUpdate
	if st.Game.IsFinished() {
		action = ActionGameEnd
	}

	that.broadcaster.Send(memberIDs(st), Event{Action: action, Payload: RoomPayload{Room: st}})

	return nil
}

// ResetGame - restarts the connection's room. No turn restriction applies.
func (that *Coordinator) ResetGame(connID, roomID string) error {
	currentRoom, err := that.roomFor(connID, roomID)
	if err != nil {
		return err
	}

	st := currentRoom.Reset()
	that.broadcaster.Send(memberIDs(st), Event{Action: ActionGameReset, Payload: RoomPayload{Room: st}})

	return nil
}

// PlayerReady - flips the ready flag and informs the room.
func (that *Coordinator) PlayerReady(connID, roomID string) error {
	currentRoom, err := that.roomFor(connID, roomID)
	if err != nil {
		return err
	}

	st, err := currentRoom.ToggleReady(connID)
	if err != nil {
		return err
	}

	that.broadcaster.Send(memberIDs(st), Event{Action: ActionPlayerReadyUpdate, Payload: RoomPayload{Room: st}})

	return nil
}

// ChatMessage - broadcasts a trimmed chat line to the room. Oversized
// messages are silently dropped.
func (that *Coordinator) ChatMessage(connID, roomID, text string) error {
	currentRoom, err := that.roomFor(connID, roomID)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > that.conf.MaxChatLength {
		return nil
	}

	st := currentRoom.State()

	var sender *entity.Player
	for i := range st.Players {
		if st.Players[i].ID == connID {
			sender = &st.Players[i]
			break
		}
	}

	if sender == nil {
		return apperror.ErrNotAMember
	}

	that.broadcaster.Send(memberIDs(st), Event{
		Action: ActionChatMessage,
		Payload: ChatPayload{
			ID:        uuid.NewString(),
			Name:      sender.Name,
			AvatarURL: sender.AvatarURL,
			Message:   text,
			Timestamp: time.Now(),
		},
	})

	return nil
}

// Disconnect - removes the connection from its room. An active game is
// abandoned and the remaining player told via playerLeft.
func (that *Coordinator) Disconnect(connID string) {
	log := that.logger.With("method", "Disconnect")

	st, wasActive, err := that.registry.Leave(connID)
	if err != nil {
		// Connections that never joined a room have nothing to clean up.
		return
	}

	that.notifyDeparture(&room.Departure{State: st, WasActive: wasActive})

	log.Info("connection left room", "connID", connID, "roomID", st.ID)
}

// notifyDeparture - tells a room's remaining member that the other player is
// gone. A departure that abandoned an active game is playerLeft, any other
// one a plain roomUpdate.
func (that *Coordinator) notifyDeparture(departure *room.Departure) {
	if departure == nil || len(departure.State.Players) == 0 {
		return
	}

	action := ActionRoomUpdate
	if departure.WasActive {
		action = ActionPlayerLeft
	}

	that.broadcaster.Send(memberIDs(departure.State), Event{Action: action, Payload: RoomPayload{Room: departure.State}})
}

// handleTimeout - fan-out for the inactivity timer, the only asynchronous
// room mutation.
func (that *Coordinator) handleTimeout(st room.State) {
	that.logger.Info("game timed out", "roomID", st.ID)
	that.broadcaster.Send(memberIDs(st), Event{Action: ActionGameTimeout, Payload: RoomPayload{Room: st}})
}

// roomFor - resolves the connection's room and, when the payload names a
// room, rejects actions aimed at a room the connection never joined.
func (that *Coordinator) roomFor(connID, roomID string) (*room.Room, error) {
	currentRoom, err := that.registry.RoomByConn(connID)
	if err != nil {
		return nil, err
	}

	if roomID != "" && currentRoom.ID() != roomID {
		return nil, apperror.ErrNotAMember
	}

	return currentRoom, nil
}

func (that *Coordinator) validateJoin(req JoinRequest) error {
	name := strings.TrimSpace(req.Name)

	switch {
	case req.Room == "" || name == "":
		return fmt.Errorf("%w: room and name are required", apperror.ErrInvalidPayload)
	case len(req.Room) > that.conf.MaxRoomIDLength:
		return fmt.Errorf("%w: room id exceeds %d characters", apperror.ErrInvalidPayload, that.conf.MaxRoomIDLength)
	case len(name) > that.conf.MaxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", apperror.ErrInvalidPayload, that.conf.MaxNameLength)
	case req.Mark != entity.PlayerX && req.Mark != entity.PlayerO:
		return fmt.Errorf("%w: symbol must be %q or %q", apperror.ErrInvalidPayload, entity.PlayerX, entity.PlayerO)
	}

	return nil
}

func memberIDs(st room.State) []string {
	ids := make([]string, 0, len(st.Players))
	for _, player := range st.Players {
		ids = append(ids, player.ID)
	}
	return ids
}
