// Package auth issues and verifies the bearer tokens of the identity provider.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"roomcheck-backend/config"
)

// Role is the kind of principal a token belongs to.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAgent Role = "agent"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAgent:
		return true
	}
	return false
}

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims are the JWT claims the service relies on. The subject is the
// user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Name string
	Role Role
}

// Principal returns the caller described by the claims.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.Subject, Name: c.Name, Role: c.Role}
}

// Service signs and validates HS256 tokens.
type Service struct {
	secret []byte
	issuer string
}

// NewService creates a token service from the auth configuration.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Issue signs a token for the given principal.
func (s *Service) Issue(p Principal, ttl time.Duration) (string, error) {
	if p.ID == "" || !p.Role.Valid() {
		return "", ErrInvalidClaims
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name: p.Name,
		Role: p.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates a token and returns its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
