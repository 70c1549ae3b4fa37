package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, unsigned or mis-signed tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidClaims is returned when a valid token lacks tenant or role.
	ErrInvalidClaims = errors.New("auth: invalid claims")
)

// clockSkew tolerates small drift between shore issuers and shipboard hosts.
const clockSkew = 30 * time.Second

// Claims represents JWT claims used by this service.
type Claims struct {
	TenantID string   `json:"tenant_id"`
	Role     string   `json:"role"`
	Vessels  []string `json:"vessels,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts validated claims into a request identity.
func (c *Claims) Identity() Identity {
	role, _ := NormalizeRole(c.Role)
	var vessels []string
	for _, vessel := range c.Vessels {
		if vessel = strings.TrimSpace(vessel); vessel != "" {
			vessels = append(vessels, vessel)
		}
	}
	return Identity{
		TenantID: c.TenantID,
		Role:     role,
		Subject:  c.Subject,
		Vessels:  vessels,
	}
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" || len(secret) == 0 {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant_id", ErrInvalidClaims)
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidClaims, claims.Role)
	}
	return claims, nil
}
