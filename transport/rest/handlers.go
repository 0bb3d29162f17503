package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

type handlers struct {
	lister roomLister
}

func newHandlers(lister roomLister) *handlers {
	return &handlers{lister: lister}
}

func (that *handlers) Ping(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "pong")
}

// Rooms - the public-room listing: joinable public rooms only.
func (that *handlers) Rooms(ctx echo.Context) error {
	summaries := that.lister.ListRooms()
	if summaries == nil {
		summaries = []room.Summary{}
	}

	return ctx.JSON(http.StatusOK, summaries)
}
