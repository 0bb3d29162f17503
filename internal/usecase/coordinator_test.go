package usecase

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

// recordingBroadcaster captures fan-out instead of writing sockets.
type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sentEvent
}

type sentEvent struct {
	connIDs []string
	event   Event
}

func (that *recordingBroadcaster) Send(connIDs []string, event Event) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sent = append(that.sent, sentEvent{connIDs: connIDs, event: event})
}

func (that *recordingBroadcaster) byAction(action string) []sentEvent {
	that.mu.Lock()
	defer that.mu.Unlock()

	var matched []sentEvent
	for _, s := range that.sent {
		if s.event.Action == action {
			matched = append(matched, s)
		}
	}
	return matched
}

func (that *recordingBroadcaster) reset() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sent = nil
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingBroadcaster) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broadcaster := &recordingBroadcaster{}

	coordinator := NewCoordinator(logger, config.Room{
		Capacity:          2,
		InactivityTimeout: time.Hour,
		SweepInterval:     time.Hour,
		StaleThreshold:    time.Hour,
		MaxNameLength:     20,
		MaxRoomIDLength:   10,
		MaxChatLength:     100,
	}, broadcaster)

	t.Cleanup(coordinator.Stop)

	return coordinator, broadcaster
}

func seatBothPlayers(t *testing.T, coordinator *Coordinator) {
	t.Helper()

	require.NoError(t, coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerX}))
	require.NoError(t, coordinator.JoinRoom("c2", JoinRequest{Room: "R1", Name: "Bob", Mark: entity.PlayerO}))
}

func TestCoordinator_JoinRoom(t *testing.T) {
	t.Run("First join waits, second starts", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)

		// When: Alice joins R1 as X
		require.NoError(t, coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerX}))

		// Then: she gets joinSuccess with a waiting room and no gameStart yet
		success := broadcaster.byAction(ActionJoinSuccess)
		require.Len(t, success, 1)
		require.Equal(t, []string{"c1"}, success[0].connIDs)

		payload, ok := success[0].event.Payload.(RoomPayload)
		require.True(t, ok)
		require.Equal(t, entity.StatusWaiting, payload.Room.Game.Status)
		require.Empty(t, broadcaster.byAction(ActionGameStart))

		// When: Bob joins R1 as O
		require.NoError(t, coordinator.JoinRoom("c2", JoinRequest{Room: "R1", Name: "Bob", Mark: entity.PlayerO}))

		// Then: both members get gameStart with X to move
		starts := broadcaster.byAction(ActionGameStart)
		require.Len(t, starts, 1)
		require.ElementsMatch(t, []string{"c1", "c2"}, starts[0].connIDs)

		payload = starts[0].event.Payload.(RoomPayload)
		require.Equal(t, entity.StatusActive, payload.Room.Game.Status)
		require.Equal(t, entity.PlayerX, payload.Room.Game.Turn)
	})

	t.Run("Validation failures touch no state", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)

		cases := []struct {
			name string
			req  JoinRequest
		}{
			{"missing room", JoinRequest{Name: "Alice", Mark: entity.PlayerX}},
			{"missing name", JoinRequest{Room: "R1", Mark: entity.PlayerX}},
			{"oversized name", JoinRequest{Room: "R1", Name: strings.Repeat("a", 21), Mark: entity.PlayerX}},
			{"oversized room id", JoinRequest{Room: strings.Repeat("r", 11), Name: "Alice", Mark: entity.PlayerX}},
			{"bad symbol", JoinRequest{Room: "R1", Name: "Alice", Mark: "Z"}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				err := coordinator.JoinRoom("c1", tc.req)
				require.ErrorIs(t, err, apperror.ErrInvalidPayload)
			})
		}

		// Then: nothing was broadcast and no room exists
		require.Empty(t, broadcaster.sent)
		require.Empty(t, coordinator.ListRooms())
	})

	t.Run("Taken symbol is a scoped error", func(t *testing.T) {
		coordinator, _ := newTestCoordinator(t)

		require.NoError(t, coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerX}))

		// When: Bob requests the mark Alice holds
		err := coordinator.JoinRoom("c2", JoinRequest{Room: "R1", Name: "Bob", Mark: entity.PlayerX})

		// Then: an ErrMarkTaken error must be returned
		require.ErrorIs(t, err, apperror.ErrMarkTaken)
	})

	t.Run("Joining the current room again is rejected", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)

		require.NoError(t, coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerX}))
		broadcaster.reset()

		// When: the same connection asks for the other mark in its own room
		err := coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerO})

		// Then: an ErrAlreadyInRoom error must be returned and nothing broadcast
		require.ErrorIs(t, err, apperror.ErrAlreadyInRoom)
		require.Empty(t, broadcaster.sent)
	})

	t.Run("Switching rooms notifies the abandoned room", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Bob joins another room mid-game
		require.NoError(t, coordinator.JoinRoom("c2", JoinRequest{Room: "R2", Name: "Bob", Mark: entity.PlayerX}))

		// Then: Alice receives playerLeft with the abandoned game
		lefts := broadcaster.byAction(ActionPlayerLeft)
		require.Len(t, lefts, 1)
		require.Equal(t, []string{"c1"}, lefts[0].connIDs)

		payload := lefts[0].event.Payload.(RoomPayload)
		require.Equal(t, "R1", payload.Room.ID)
		require.Equal(t, entity.StatusFinished, payload.Room.Game.Status)
		require.Empty(t, payload.Room.Game.Winner)

		// Then: Bob's joinSuccess addresses him in the new room
		success := broadcaster.byAction(ActionJoinSuccess)
		require.Len(t, success, 1)
		require.Equal(t, []string{"c2"}, success[0].connIDs)
		require.Equal(t, "R2", success[0].event.Payload.(RoomPayload).Room.ID)
	})
}

func TestCoordinator_MakeMove(t *testing.T) {
	t.Run("Move broadcasts the new board", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Alice (X) takes cell 0
		require.NoError(t, coordinator.MakeMove("c1", "R1", 0))

		// Then: both members see the move and the turn pass to O
		updates := broadcaster.byAction(ActionMoveUpdate)
		require.Len(t, updates, 1)
		require.ElementsMatch(t, []string{"c1", "c2"}, updates[0].connIDs)

		payload := updates[0].event.Payload.(RoomPayload)
		require.Equal(t, entity.PlayerX, payload.Room.Game.Board[0])
		require.Equal(t, entity.PlayerO, payload.Room.Game.Turn)
	})

	t.Run("Occupied cell rejected, nothing broadcast", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		require.NoError(t, coordinator.MakeMove("c1", "R1", 0))
		broadcaster.reset()

		// When: Bob (O) tries cell 0 again
		err := coordinator.MakeMove("c2", "R1", 0)

		// Then: the caller gets ErrCellOccupied and the room hears nothing
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		require.Empty(t, broadcaster.sent)
	})

	t.Run("Winning move broadcasts gameEnd", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)

		// When: X:0, O:3, X:1, O:4, X:2 complete the top row
		for _, move := range []struct {
			connID string
			cell   int
		}{{"c1", 0}, {"c2", 3}, {"c1", 1}, {"c2", 4}, {"c1", 2}} {
			require.NoError(t, coordinator.MakeMove(move.connID, "R1", move.cell))
		}

		// Then: gameEnd carries winner X and status finished
		ends := broadcaster.byAction(ActionGameEnd)
		require.Len(t, ends, 1)

		payload := ends[0].event.Payload.(RoomPayload)
		require.Equal(t, entity.PlayerX, payload.Room.Game.Winner)
		require.Equal(t, entity.StatusFinished, payload.Room.Game.Status)
	})

	t.Run("Full board without a line is a tie", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)

		// When: X 0,1,5,6,8 / O 2,3,4,7 fill the board without a line
		for _, move := range []struct {
			connID string
			cell   int
		}{{"c1", 0}, {"c2", 2}, {"c1", 1}, {"c2", 3}, {"c1", 5}, {"c2", 4}, {"c1", 6}, {"c2", 7}, {"c1", 8}} {
			require.NoError(t, coordinator.MakeMove(move.connID, "R1", move.cell))
		}

		// Then: gameEnd reports a tie
		ends := broadcaster.byAction(ActionGameEnd)
		require.Len(t, ends, 1)

		payload := ends[0].event.Payload.(RoomPayload)
		require.Equal(t, entity.WinnerTie, payload.Room.Game.Winner)
		require.Equal(t, 9, payload.Room.Game.MoveCount)
	})

	t.Run("Move aimed at another room", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Alice names a room she never joined
		err := coordinator.MakeMove("c1", "R2", 0)

		// Then: an ErrNotAMember error must be returned and nothing broadcast
		require.ErrorIs(t, err, apperror.ErrNotAMember)
		require.Empty(t, broadcaster.sent)
	})

	t.Run("Move without membership", func(t *testing.T) {
		coordinator, _ := newTestCoordinator(t)

		// When: a connection that never joined makes a move
		err := coordinator.MakeMove("c9", "R1", 0)

		// Then: an ErrNotAMember error must be returned
		require.ErrorIs(t, err, apperror.ErrNotAMember)
	})
}

func TestCoordinator_ResetAndReady(t *testing.T) {
	coordinator, broadcaster := newTestCoordinator(t)
	seatBothPlayers(t, coordinator)
	require.NoError(t, coordinator.MakeMove("c1", "R1", 4))
	broadcaster.reset()

	// When: Bob toggles ready and Alice resets mid-game
	require.NoError(t, coordinator.PlayerReady("c2", "R1"))
	require.NoError(t, coordinator.ResetGame("c1", "R1"))

	// Then: playerReadyUpdate then gameReset reach both members
	readies := broadcaster.byAction(ActionPlayerReadyUpdate)
	require.Len(t, readies, 1)
	readyPayload := readies[0].event.Payload.(RoomPayload)
	require.True(t, readyPayload.Room.Players[1].Ready)

	resets := broadcaster.byAction(ActionGameReset)
	require.Len(t, resets, 1)
	require.ElementsMatch(t, []string{"c1", "c2"}, resets[0].connIDs)

	resetPayload := resets[0].event.Payload.(RoomPayload)
	assert.Equal(t, entity.StatusActive, resetPayload.Room.Game.Status)
	assert.Zero(t, resetPayload.Room.Game.MoveCount)
	for _, player := range resetPayload.Room.Players {
		assert.False(t, player.Ready)
	}
}

func TestCoordinator_ChatMessage(t *testing.T) {
	t.Run("Trimmed message broadcast with generated id", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Alice sends a padded 100-character message
		text := strings.Repeat("a", 100)
		require.NoError(t, coordinator.ChatMessage("c1", "R1", "  "+text+"  "))

		// Then: both members get it trimmed, with id, sender, and timestamp
		chats := broadcaster.byAction(ActionChatMessage)
		require.Len(t, chats, 1)
		require.ElementsMatch(t, []string{"c1", "c2"}, chats[0].connIDs)

		payload := chats[0].event.Payload.(ChatPayload)
		require.Equal(t, text, payload.Message)
		require.Equal(t, "Alice", payload.Name)
		require.NotEmpty(t, payload.ID)
		require.False(t, payload.Timestamp.IsZero())
	})

	t.Run("Multibyte message within the limit is broadcast", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Alice sends 100 two-byte characters
		text := strings.Repeat("я", 100)
		require.NoError(t, coordinator.ChatMessage("c1", "R1", text))

		// Then: the message reaches both members, the limit counts characters
		chats := broadcaster.byAction(ActionChatMessage)
		require.Len(t, chats, 1)
		require.Equal(t, text, chats[0].event.Payload.(ChatPayload).Message)
	})

	t.Run("Oversized message silently dropped", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Alice sends 101 characters
		require.NoError(t, coordinator.ChatMessage("c1", "R1", strings.Repeat("a", 101)))

		// Then: nothing is broadcast and no error surfaces
		require.Empty(t, broadcaster.byAction(ActionChatMessage))
	})

	t.Run("Distinct ids per message", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		require.NoError(t, coordinator.ChatMessage("c1", "R1", "first"))
		require.NoError(t, coordinator.ChatMessage("c1", "R1", "second"))

		chats := broadcaster.byAction(ActionChatMessage)
		require.Len(t, chats, 2)
		require.NotEqual(t, chats[0].event.Payload.(ChatPayload).ID, chats[1].event.Payload.(ChatPayload).ID)
	})
}

func TestCoordinator_Disconnect(t *testing.T) {
	t.Run("Mid-game departure notifies the survivor", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		seatBothPlayers(t, coordinator)
		broadcaster.reset()

		// When: Bob's connection drops during the active game
		coordinator.Disconnect("c2")

		// Then: Alice receives playerLeft with a finished, winnerless game
		lefts := broadcaster.byAction(ActionPlayerLeft)
		require.Len(t, lefts, 1)
		require.Equal(t, []string{"c1"}, lefts[0].connIDs)

		payload := lefts[0].event.Payload.(RoomPayload)
		require.Equal(t, entity.StatusFinished, payload.Room.Game.Status)
		require.Empty(t, payload.Room.Game.Winner)
		require.Len(t, payload.Room.Players, 1)
	})

	t.Run("Waiting-room departure sends roomUpdate", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)
		require.NoError(t, coordinator.JoinRoom("c1", JoinRequest{Room: "R1", Name: "Alice", Mark: entity.PlayerX}))
		require.NoError(t, coordinator.JoinRoom("c2", JoinRequest{Room: "R2", Name: "Bob", Mark: entity.PlayerX}))
		broadcaster.reset()

		// When: Alice leaves her single-player room
		coordinator.Disconnect("c1")

		// Then: the emptied room is gone and nobody is notified
		require.Empty(t, broadcaster.sent)
		require.Len(t, coordinator.ListRooms(), 1)
	})

	t.Run("Disconnect before joining is a no-op", func(t *testing.T) {
		coordinator, broadcaster := newTestCoordinator(t)

		coordinator.Disconnect("c9")

		require.Empty(t, broadcaster.sent)
	})
}

func TestCoordinator_GameTimeout(t *testing.T) {
	// Given: a coordinator with a very short inactivity timeout
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broadcaster := &recordingBroadcaster{}

	coordinator := NewCoordinator(logger, config.Room{
		Capacity:          2,
		InactivityTimeout: 20 * time.Millisecond,
		SweepInterval:     time.Hour,
		StaleThreshold:    time.Hour,
		MaxNameLength:     20,
		MaxRoomIDLength:   10,
		MaxChatLength:     100,
	}, broadcaster)
	t.Cleanup(coordinator.Stop)

	seatBothPlayers(t, coordinator)

	// When: the game stalls past the timeout
	require.Eventually(t, func() bool {
		return len(broadcaster.byAction(ActionGameTimeout)) == 1
	}, time.Second, 5*time.Millisecond)

	// Then: both members are told and the room is back to waiting
	timeouts := broadcaster.byAction(ActionGameTimeout)
	payload := timeouts[0].event.Payload.(RoomPayload)
	assert.ElementsMatch(t, []string{"c1", "c2"}, timeouts[0].connIDs)
	assert.Equal(t, entity.StatusWaiting, payload.Room.Game.Status)
	assert.Len(t, payload.Room.Players, 2)
}
