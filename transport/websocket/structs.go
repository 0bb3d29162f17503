package websocket

import "encoding/json"

// Message is the wire envelope in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MovePayload is the makeMove request body. Index is a pointer so a missing
// field is distinguishable from cell 0.
type MovePayload struct {
	Room  string `json:"room"`
	Index *int   `json:"index"`
	Mark  string `json:"symbol,omitempty"`
}

// RoomScopedPayload covers resetGame and playerReady requests.
type RoomScopedPayload struct {
	Room string `json:"room"`
}

// ChatRequestPayload is the chatMessage request body.
type ChatRequestPayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Error string `json:"error"`
}
