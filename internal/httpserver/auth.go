package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/transport"
)

const (
	msgInvalidJSON    = "Invalid or missing JSON"
	msgMissingFields  = "User name or password required"
	msgUsernameTaken  = "Username already exists"
	msgBadCredentials = "Invalid username or password"
	msgRegistered     = "User registered successfully"
	msgLoggedOut      = "User logout successfully"
	msgInternal       = "internal server error"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidJSON)
	}

	if _, err := h.Svc.Register(ctx, req.Username, req.Password, req.Role); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields).SetInternal(err)
		case errors.Is(err, service.ErrConflict):
			return echo.NewHTTPError(http.StatusBadRequest, msgUsernameTaken)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
		}
	}

	return c.JSON(http.StatusCreated, transport.MessageResponse{Message: msgRegistered})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidJSON)
	}

	pair, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, msgMissingFields)
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, msgBadCredentials)
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
		}
	}

	return c.JSON(http.StatusOK, transport.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, middleware.MsgMissingHeader)
	}

	var req transport.LogoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("logout_body_ignored", "error", err)
	}

	if err := h.Svc.Logout(ctx, claims, req.RefreshToken); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, msgInternal).SetInternal(err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: msgLoggedOut})
}

func (h *AuthHTTP) AdminOnly(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Hello, admin"})
}

func (h *AuthHTTP) SharedContent(c echo.Context) error {
	role, _ := c.Get(middleware.CtxRole).(string)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: fmt.Sprintf("Hello your role is %s", role)})
}
