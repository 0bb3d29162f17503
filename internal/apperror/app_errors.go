package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")

	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyInRoom  = errors.New("connection is already in the room")
	ErrMarkTaken      = errors.New("mark is already taken")
	ErrRoomNotFound   = errors.New("room not found")
	ErrNotAMember     = errors.New("player is not a member of any room")
	ErrInvalidPayload = errors.New("invalid payload")
)
