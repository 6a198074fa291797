// Package session ties token issuance to the revocation store.
//
// A token is usable iff its jti is whitelisted and not blacklisted. Unknown identifiers
// are rejected: absence of a whitelist record disqualifies as much as a blacklist record.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/revocation"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrForeignToken       = errors.New("token belongs to another subject")
)

// State is the revocation state of a jti as observed by the manager.
type State int

const (
	StateUnknown State = iota
	StateWhitelisted
	StateBlacklisted
)

func (s State) String() string {
	switch s {
	case StateWhitelisted:
		return "whitelisted"
	case StateBlacklisted:
		return "blacklisted"
	default:
		return "unknown"
	}
}

type Manager struct {
	issuer  *tokens.Issuer
	store   revocation.Store
	metrics *metrics.Metrics
	ttl     time.Duration
}

func NewManager(issuer *tokens.Issuer, store revocation.Store, m *metrics.Metrics) *Manager {
	return &Manager{issuer: issuer, store: store, metrics: m, ttl: revocation.TTL}
}

// Issuer exposes the token issuer the manager mints with.
func (m *Manager) Issuer() *tokens.Issuer { return m.issuer }

// Login mints a token pair and whitelists the access jti. No tokens are returned
// when the whitelist write fails.
func (m *Manager) Login(ctx context.Context, userID uint, role string) (tokens.TokenPair, error) {
	pair, err := m.issuer.Issue(userID, role)
	if err != nil {
		return tokens.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := m.store.SetWhitelisted(ctx, pair.AccessJTI, m.ttl); err != nil {
		return tokens.TokenPair{}, fmt.Errorf("%w: whitelist access token: %w", ErrStorageUnavailable, err)
	}
	return pair, nil
}

// Status reports the state of jti. Blacklist presence wins over whitelist presence.
func (m *Manager) Status(ctx context.Context, jti string) (State, error) {
	blacklisted, err := m.store.IsBlacklisted(ctx, jti)
	if err != nil {
		return StateUnknown, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if blacklisted {
		return StateBlacklisted, nil
	}

	whitelisted, err := m.store.IsWhitelisted(ctx, jti)
	if err != nil {
		return StateUnknown, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if whitelisted {
		return StateWhitelisted, nil
	}
	return StateUnknown, nil
}

// IsValid reports whether jti is currently usable. Storage errors yield false.
func (m *Manager) IsValid(ctx context.Context, jti string) (bool, error) {
	st, err := m.Status(ctx, jti)
	if err != nil {
		return false, err
	}
	return st == StateWhitelisted, nil
}

// Authenticate verifies signature and expiry of raw and then its revocation state.
func (m *Manager) Authenticate(ctx context.Context, raw string) (*tokens.AccessClaims, error) {
	l := logging.FromContext(ctx).With("svc", "session.authenticate")

	claims, err := m.issuer.ParseAccess(raw)
	if err != nil {
		m.metrics.TokenChecked(metrics.CheckInvalid)
		l.Debug("token_rejected", "reason", "invalid", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	st, err := m.Status(ctx, claims.ID)
	if err != nil {
		m.metrics.TokenChecked(metrics.CheckError)
		l.Error("token_check_failed", "jti", claims.ID, "error", err)
		return nil, err
	}

	switch st {
	case StateWhitelisted:
		m.metrics.TokenChecked(metrics.CheckValid)
		return claims, nil
	case StateBlacklisted:
		m.metrics.TokenChecked(metrics.CheckRevoked)
	default:
		m.metrics.TokenChecked(metrics.CheckUnknown)
	}
	l.Debug("token_rejected", "jti", claims.ID, "reason", st.String())
	return nil, ErrUnauthenticated
}

// Logout blacklists jti and then drops its whitelist entry. The second write is cleanup
// only; blacklist precedence already makes the token unusable.
func (m *Manager) Logout(ctx context.Context, jti string) error {
	l := logging.FromContext(ctx).With("svc", "session.logout", "jti", jti)

	if err := m.store.SetBlacklisted(ctx, jti, m.ttl); err != nil {
		m.metrics.LogoutAttempted(metrics.ResultError)
		return fmt.Errorf("%w: blacklist token: %w", ErrStorageUnavailable, err)
	}
	if err := m.store.RemoveWhitelisted(ctx, jti); err != nil {
		l.Warn("whitelist_cleanup_failed", "error", err)
	}
	m.metrics.LogoutAttempted(metrics.ResultSuccess)
	return nil
}

// RevokeRefresh blacklists the jti of a presented refresh token for the rest of its
// lifetime, and never for less than the retention window. The token must be issued to subject.
func (m *Manager) RevokeRefresh(ctx context.Context, raw, subject string) error {
	claims, err := m.issuer.ParseRefresh(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if claims.Subject != subject {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, ErrForeignToken)
	}
	ttl := m.issuer.Remaining(claims.ExpiresAt)
	if ttl < m.ttl {
		ttl = m.ttl
	}
	if err := m.store.SetBlacklisted(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("%w: blacklist refresh token: %w", ErrStorageUnavailable, err)
	}
	logging.FromContext(ctx).Info("refresh_revoked", slog.String("jti", claims.ID))
	return nil
}

// RefreshUsable reports whether a refresh jti has not been revoked. Refresh tokens are
// never whitelisted, so only the blacklist is consulted.
func (m *Manager) RefreshUsable(ctx context.Context, jti string) (bool, error) {
	blacklisted, err := m.store.IsBlacklisted(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return !blacklisted, nil
}

// Authorize reports whether role is one of allowed.
func Authorize(role string, allowed ...string) bool {
	return role != "" && slices.Contains(allowed, role)
}

var _ revocation.Checker = (*Manager)(nil)
