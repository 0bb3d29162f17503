package suite

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/usecase"
	transport "github.com/rocketscienceinc/tictactoe-rooms/transport/websocket"
)

const readWait = 5 * time.Second

// Suite runs the full coordinator plus WebSocket transport in-process behind
// an httptest server, so integration tests exercise real connections without
// external infrastructure.
type Suite struct {
	*testing.T
	Logger *slog.Logger

	Coordinator *usecase.Coordinator

	server *httptest.Server
}

func New(t *testing.T, conf config.Room) *Suite {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	hub := transport.NewHub(logger)
	coordinator := usecase.NewCoordinator(logger, conf, hub)
	wsServer := transport.New(logger, hub, coordinator)

	server := httptest.NewServer(http.HandlerFunc(wsServer.ServeWS))

	t.Cleanup(func() {
		server.Close()
		coordinator.Stop()
	})

	return &Suite{
		T:           t,
		Logger:      logger,
		Coordinator: coordinator,
		server:      server,
	}
}

// DefaultRoomConfig - the settings integration tests run with.
func DefaultRoomConfig() config.Room {
	return config.Room{
		Capacity:          2,
		InactivityTimeout: time.Hour,
		SweepInterval:     time.Hour,
		StaleThreshold:    time.Hour,
		MaxNameLength:     20,
		MaxRoomIDLength:   10,
		MaxChatLength:     100,
	}
}

// Client is one connected WebSocket test client.
type Client struct {
	t    *testing.T
	conn *websocket.Conn
}

// Dial - opens a WebSocket connection to the suite's server.
func (that *Suite) Dial() *Client {
	that.Helper()

	url := "ws" + strings.TrimPrefix(that.server.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(that.T, err)
	if resp != nil {
		_ = resp.Body.Close()
	}

	that.Cleanup(func() {
		_ = conn.Close()
	})

	return &Client{t: that.T, conn: conn}
}

// Close - drops the connection, simulating a disconnect.
func (that *Client) Close() {
	_ = that.conn.Close()
}

// Send - writes one {action, payload} envelope.
func (that *Client) Send(action string, payload any) {
	that.t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(that.t, err)

	msg := struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{Action: action, Payload: raw}

	require.NoError(that.t, that.conn.WriteJSON(msg))
}

// Expect - reads the next event and requires the given action.
func (that *Client) Expect(action string) json.RawMessage {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readWait)))

	var event struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}

	require.NoError(that.t, that.conn.ReadJSON(&event), "waiting for %q", action)
	require.Equal(that.t, action, event.Action)

	return event.Payload
}

// ExpectRoom - reads the next event, requires the action, and returns the
// room snapshot it carried.
func (that *Client) ExpectRoom(action string) usecase.RoomPayload {
	that.t.Helper()

	raw := that.Expect(action)

	var payload usecase.RoomPayload
	require.NoError(that.t, json.Unmarshal(raw, &payload))

	return payload
}
