package tokens

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

type AccessClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject as the numeric user id.
func (c *AccessClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

// RefreshClaims carries no role; it is re-derived from the credential store.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, sub)
	}
	return uint(id), nil
}
