package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/hash"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const (
	maxUsernameLen = 80
	maxRoleLen     = 20
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrStorage            = errors.New("storage unavailable")
)

type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type AuthService struct {
	Repo      UserRepo
	Sessions  *session.Manager
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

func (s *AuthService) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username = strings.TrimSpace(username)
	role = strings.TrimSpace(role)
	if username == "" || password == "" {
		l.Warn("register_error", "status", 400, "reason", "missing username or password")
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if len(username) > maxUsernameLen || len(role) > maxRoleLen {
		l.Warn("register_error", "status", 400, "reason", "field too long")
		return nil, fmt.Errorf("%w: field too long", ErrValidation)
	}
	if role == "" {
		role = models.RoleViewer
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Username: username, PasswordHash: pwHash, Role: role}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 400, "reason", "user already exist")
			return nil, ErrConflict
		}
		l.Error("register_error", "status", 500, "reason", "internal server error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	l.Info("register_successful", "user_id", user.ID, "role", user.Role)
	events.Emit(ctx, s.Publisher, events.Event{Type: events.TypeUserRegistered, UserID: user.ID, Username: user.Username})
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (tokens.TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if strings.TrimSpace(username) == "" || password == "" {
		s.Metrics.LoginAttempted(metrics.ResultFailure)
		l.Warn("login_failed", "status", 400, "reason", "missing username or password")
		return tokens.TokenPair{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.Repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			s.Metrics.LoginAttempted(metrics.ResultFailure)
			l.Warn("login_failed", "status", 400, "reason", "invalid username or password")
			return tokens.TokenPair{}, ErrInvalidCredentials
		}
		s.Metrics.LoginAttempted(metrics.ResultError)
		l.Error("login_failed", "status", 500, "error", err)
		return tokens.TokenPair{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		s.Metrics.LoginAttempted(metrics.ResultFailure)
		l.Warn("login_failed", "status", 400, "reason", "invalid username or password")
		return tokens.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.Sessions.Login(ctx, user.ID, user.Role)
	if err != nil {
		s.Metrics.LoginAttempted(metrics.ResultError)
		l.Error("login_failed", "status", 500, "error", err)
		return tokens.TokenPair{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	s.Metrics.LoginAttempted(metrics.ResultSuccess)
	l.Info("login_successful", "user_id", user.ID, "jti", pair.AccessJTI)
	events.Emit(ctx, s.Publisher, events.Event{Type: events.TypeUserLoggedIn, UserID: user.ID, Username: user.Username})
	return pair, nil
}

// Logout revokes the access jti and, when given, the presented refresh token. A refresh token
// that does not verify or belongs to another user is ignored; the access token is still revoked.
func (s *AuthService) Logout(ctx context.Context, claims *tokens.AccessClaims, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout", "jti", claims.ID)

	if err := s.Sessions.Logout(ctx, claims.ID); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot blacklist token", "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if refreshToken != "" {
		if err := s.Sessions.RevokeRefresh(ctx, refreshToken, claims.Subject); err != nil {
			switch {
			case errors.Is(err, session.ErrStorageUnavailable):
				l.Error("logout_failed", "status", 500, "reason", "cannot revoke refresh token", "error", err)
				return fmt.Errorf("%w: %w", ErrStorage, err)
			case errors.Is(err, session.ErrForeignToken):
				l.Warn("refresh_not_revoked", "reason", "subject mismatch")
			default:
				l.Warn("refresh_not_revoked", "reason", "invalid refresh token", "error", err)
			}
		}
	}

	l.Info("logout_successful")
	userID, err := claims.UserID()
	if err != nil {
		l.Warn("event_skipped", "type", events.TypeUserLoggedOut, "error", err)
		return nil
	}
	events.Emit(ctx, s.Publisher, events.Event{Type: events.TypeUserLoggedOut, UserID: userID})
	return nil
}
