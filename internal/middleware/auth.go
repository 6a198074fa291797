package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxJTI    = "jti"
	CtxClaims = "claims"
)

const (
	MsgMissingHeader = "Missing Authorization Header"
	MsgInvalidToken  = "invalid or revoked token"
	MsgNotAdmin      = "Not an admin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*tokens.AccessClaims, error)
}

// RequireAuth admits requests carrying a bearer access token that verifies and is
// currently whitelisted. A storage failure during the check rejects the request like any
// other invalid token.
func RequireAuth(m Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgMissingHeader)
			}

			ctx := c.Request().Context()
			claims, err := m.Authenticate(ctx, raw)
			if err != nil {
				if errors.Is(err, session.ErrStorageUnavailable) {
					logging.FromContext(ctx).Error("token_check_unavailable", "status", 401, "error", err)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, MsgInvalidToken).SetInternal(err)
			}

			c.Set(CtxUserID, claims.Subject)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxJTI, claims.ID)
			c.Set(CtxClaims, claims)

			l := logging.FromContext(ctx).With("user_id", claims.Subject, "jti", claims.ID)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l)))

			return next(c)
		}
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(CtxClaims).(*tokens.AccessClaims); !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgMissingHeader)
			}
			role, _ := c.Get(CtxRole).(string)
			if !session.Authorize(role, allowed...) {
				return echo.NewHTTPError(http.StatusForbidden, MsgNotAdmin)
			}
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by RequireAuth.
func ClaimsFrom(c echo.Context) (*tokens.AccessClaims, bool) {
	claims, ok := c.Get(CtxClaims).(*tokens.AccessClaims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
