// Package revocation tracks which token identifiers are currently usable.
//
// Two disjoint namespaces are kept per jti: a whitelist entry written at login and a
// blacklist entry written at logout. Both self-expire after TTL. Presence, not content,
// is the signal.
package revocation

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TTL is the retention window shared by both namespaces. It outlives any access token.
const TTL = 24 * time.Hour

const (
	WhitelistPrefix = "whitelist:"
	BlacklistPrefix = "blacklist:"
)

var (
	ErrUnavailable = errors.New("revocation store unavailable")
	ErrEmptyJTI    = errors.New("jti must not be empty")
	ErrInvalidTTL  = errors.New("ttl must be positive")
)

type Store interface {
	SetWhitelisted(ctx context.Context, jti string, ttl time.Duration) error
	SetBlacklisted(ctx context.Context, jti string, ttl time.Duration) error
	IsWhitelisted(ctx context.Context, jti string) (bool, error)
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	RemoveWhitelisted(ctx context.Context, jti string) error
}

// Checker answers whether a token identifier is currently usable.
type Checker interface {
	IsValid(ctx context.Context, jti string) (bool, error)
}

// Pinger is implemented by backends that can report their own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func normalize(jti string) (string, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return "", ErrEmptyJTI
	}
	return jti, nil
}

func checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
