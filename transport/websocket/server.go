package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
)

const (
	actionError       = "error"
	actionRoomFull    = "roomFull"
	actionSymbolTaken = "symbolTaken"
)

type coordinator interface {
	JoinRoom(connID string, req usecase.JoinRequest) error
	MakeMove(connID, roomID string, cell int) error
	ResetGame(connID, roomID string) error
	PlayerReady(connID, roomID string) error
	ChatMessage(connID, roomID, text string) error
	Disconnect(connID string)
}

type Server struct {
	logger      *slog.Logger
	hub         *Hub
	coordinator coordinator
	upgrader    websocket.Upgrader

	handlers map[string]func(c *client, msg *Message) error
}

func New(logger *slog.Logger, hub *Hub, coordinator coordinator) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		hub:         hub,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(*client, *Message) error),
	}

	server.handlers["joinRoom"] = server.handleJoinRoom
	server.handlers["makeMove"] = server.handleMakeMove
	server.handlers["resetGame"] = server.handleResetGame
	server.handlers["playerReady"] = server.handlePlayerReady
	server.handlers["chatMessage"] = server.handleChatMessage

	return server
}

// Start - starts the WebSocket server and shuts it down when ctx is
// cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.ServeWS)

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS - upgrades one HTTP request to a WebSocket session.
func (that *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "ServeWS")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(uuid.NewString(), conn)
	that.hub.register(c)

	log.Info("WebSocket connection established", "connID", c.id)

	go c.writePump(that.logger)
	go c.readPump(that)
}

// dispatch - decodes the envelope and routes to the action handler. Handler
// failures are scoped to the caller, never fatal to the connection.
func (that *Server) dispatch(c *client, raw []byte) {
	log := that.logger.With("method", "dispatch", "connID", c.id)

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Error("failed to unmarshal message", "error", err)
		that.sendError(c, "malformed message")
		return
	}

	handler, ok := that.handlers[msg.Action]
	if !ok {
		log.Warn("unknown action", "action", msg.Action)
		that.sendError(c, fmt.Sprintf("unknown action %q", msg.Action))
		return
	}

	if err := handler(c, &msg); err != nil {
		log.Error("failed to process message", "action", msg.Action, "error", err)
		that.sendScopedError(c, err)
	}
}

func (that *Server) handleDisconnect(c *client) {
	that.hub.unregister(c)
	that.coordinator.Disconnect(c.id)
	_ = c.conn.Close()
}

// sendScopedError - maps typed room errors to their dedicated events; all
// other failures surface as a generic error event to the caller only.
func (that *Server) sendScopedError(c *client, err error) {
	switch {
	case errors.Is(err, apperror.ErrRoomFull):
		that.hub.Send([]string{c.id}, usecase.Event{Action: actionRoomFull, Payload: ErrorPayload{Error: err.Error()}})
	case errors.Is(err, apperror.ErrMarkTaken):
		that.hub.Send([]string{c.id}, usecase.Event{Action: actionSymbolTaken, Payload: ErrorPayload{Error: err.Error()}})
	default:
		that.sendError(c, err.Error())
	}
}

func (that *Server) sendError(c *client, message string) {
	that.hub.Send([]string{c.id}, usecase.Event{Action: actionError, Payload: ErrorPayload{Error: message}})
}
