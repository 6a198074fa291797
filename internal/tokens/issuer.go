package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTTL  = 5 * time.Minute
	RefreshTTL = 30 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Issuer mints and verifies HS256 tokens. It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret []byte) (*Issuer, error) {
	if len(accessSecret) == 0 {
		return nil, errors.New("access secret is empty")
	}
	if len(refreshSecret) == 0 {
		refreshSecret = accessSecret
	}
	return &Issuer{AccessSecret: accessSecret, RefreshSecret: refreshSecret, Now: time.Now}, nil
}

func NewJTI() string { return uuid.NewString() }

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Remaining is the lifetime left before exp on the issuer's clock.
func (i *Issuer) Remaining(exp *jwt.NumericDate) time.Duration {
	if exp == nil {
		return 0
	}
	return exp.Sub(i.now())
}

func (i *Issuer) Issue(userID uint, role string) (TokenPair, error) {
	now := i.now()
	sub := strconv.FormatUint(uint64(userID), 10)

	accessJTI := NewJTI()
	accessExp := now.Add(AccessTTL)
	accessToken, err := i.CreateAccessToken(AccessClaims{
		Role: role,
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        accessJTI,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshJTI := NewJTI()
	refreshExp := now.Add(RefreshTTL)
	refreshToken, err := i.CreateRefreshToken(RefreshClaims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        refreshJTI,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i *Issuer) CreateAccessToken(claims AccessClaims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.AccessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

func (i *Issuer) CreateRefreshToken(claims RefreshClaims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.RefreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, nil
}

func (i *Issuer) ParseAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(raw, &claims, i.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	if err := checkIdentity(claims.RegisteredClaims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (i *Issuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(raw, &claims, i.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	if err := checkIdentity(claims.RegisteredClaims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}
	return nil
}

func checkIdentity(rc jwt.RegisteredClaims) error {
	if rc.ID == "" {
		return fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	if rc.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return nil
}
