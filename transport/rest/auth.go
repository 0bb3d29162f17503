package rest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/config"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

const urlUserInfo = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthHandler is the external-identity edge: it turns a Google login into
// the {externalId, displayName, avatarUrl} triple the core treats as opaque.
type AuthHandler interface {
	GoogleLogin(ctx echo.Context) error
	GoogleCallback(ctx echo.Context) error
}

type authService interface {
	GenerateToken(externalID string) (string, error)
}

type authHandler struct {
	logger *slog.Logger

	oauthConfig *oauth2.Config
	auth        authService
}

func NewAuth(logger *slog.Logger, conf *config.Config, auth authService) AuthHandler {
	oauthConfig := &oauth2.Config{
		ClientID:     conf.GoogleOAuth.ClientID,
		ClientSecret: conf.GoogleOAuth.ClientSecret,
		RedirectURL:  conf.GoogleOAuth.RedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}

	return &authHandler{
		logger:      logger.With("component", "auth"),
		oauthConfig: oauthConfig,
		auth:        auth,
	}
}

func (that *authHandler) GoogleLogin(ctx echo.Context) error {
	state := uuid.NewString()

	ctx.SetCookie(&http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(time.Hour),
		HttpOnly: true,
	})

	return ctx.Redirect(http.StatusTemporaryRedirect, that.oauthConfig.AuthCodeURL(state))
}

func (that *authHandler) GoogleCallback(ctx echo.Context) error {
	log := that.logger.With("method", "GoogleCallback")

	stateCookie, err := ctx.Cookie("oauthstate")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "state cookie not found")
	}

	if ctx.QueryParam("state") != stateCookie.Value {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid state parameter")
	}

	code := ctx.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code not found in request")
	}

	token, err := that.oauthConfig.Exchange(ctx.Request().Context(), code)
	if err != nil {
		log.Error("code exchange failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "code exchange failed")
	}

	identity, err := that.fetchIdentity(ctx, token)
	if err != nil {
		log.Error("failed to fetch user info", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get user info")
	}

	tokenString, err := that.auth.GenerateToken(identity.ExternalID)
	if err != nil {
		log.Error("failed to generate auth token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate auth token")
	}

	ctx.SetCookie(&http.Cookie{
		Name:     "auth_token",
		Value:    tokenString,
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
	})

	return ctx.JSON(http.StatusOK, identity)
}

func (that *authHandler) fetchIdentity(ctx echo.Context, token *oauth2.Token) (*entity.Identity, error) {
	client := that.oauthConfig.Client(ctx.Request().Context(), token)

	resp, err := client.Get(urlUserInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to request user info: %w", err)
	}
	defer resp.Body.Close()

	var userInfo struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err = json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}

	return &entity.Identity{
		ExternalID:  userInfo.ID,
		DisplayName: userInfo.Name,
		AvatarURL:   userInfo.Picture,
	}, nil
}
