package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/room"
)

type roomLister interface {
	ListRooms() []room.Summary
}

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
}

func New(logger *slog.Logger, lister roomLister, auth AuthHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := newHandlers(lister)

	e.GET("/ping", handler.Ping)
	e.GET("/rooms", handler.Rooms)

	if auth != nil {
		e.GET("/auth/google/login", auth.GoogleLogin)
		e.GET("/auth/google/callback", auth.GoogleCallback)
	}

	return &Server{
		logger: logger.With("component", "rest"),
		echo:   e,
	}
}

// Start - starts the HTTP server and shuts it down when ctx is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := that.echo.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := that.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
