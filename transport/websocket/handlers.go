package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

// decodePayload - tolerates an absent payload; required fields are enforced
// downstream.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s", apperror.ErrInvalidPayload, err)
	}

	return nil
}

func (that *Server) handleJoinRoom(c *client, msg *Message) error {
	var req usecase.JoinRequest
	if err := decodePayload(msg.Payload, &req); err != nil {
		return err
	}

	return that.coordinator.JoinRoom(c.id, req)
}

func (that *Server) handleMakeMove(c *client, msg *Message) error {
	var req MovePayload
	if err := decodePayload(msg.Payload, &req); err != nil {
		return err
	}

	if req.Index == nil {
		return fmt.Errorf("%w: index is required", apperror.ErrInvalidPayload)
	}

	return that.coordinator.MakeMove(c.id, req.Room, *req.Index)
}

func (that *Server) handleResetGame(c *client, msg *Message) error {
	var req RoomScopedPayload
	if err := decodePayload(msg.Payload, &req); err != nil {
		return err
	}

	return that.coordinator.ResetGame(c.id, req.Room)
}

func (that *Server) handlePlayerReady(c *client, msg *Message) error {
	var req RoomScopedPayload
	if err := decodePayload(msg.Payload, &req); err != nil {
		return err
	}

	return that.coordinator.PlayerReady(c.id, req.Room)
}

func (that *Server) handleChatMessage(c *client, msg *Message) error {
	var req ChatRequestPayload
	if err := decodePayload(msg.Payload, &req); err != nil {
		return err
	}

	return that.coordinator.ChatMessage(c.id, req.Room, req.Message)
}
