// Package auth issues and verifies the HS256 tokens moderators use to call
// the admin endpoints.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"trailgate/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

const RoleAdmin = "admin"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret    []byte
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &Tokens{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		now:       time.Now,
	}, nil
}

// IssueAdmin signs an admin token for subject valid for ttl.
func (t *Tokens) IssueAdmin(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("empty subject")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	now := t.now().UTC()
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(t.secret)
}

// ParseAdmin validates an admin token and returns its subject.
func (t *Tokens) ParseAdmin(tokenString string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithLeeway(t.clockSkew),
		jwt.WithIssuer(t.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.Role != RoleAdmin || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
