// Package session issues and verifies the JWT session tokens that tie HTTP
// chat requests to a conversation. Each token carries the chat's UUID and
// the username it was issued to.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 60 * time.Minute

// ErrInvalidToken is returned by Verify for any token that cannot be
// trusted: bad signature, wrong algorithm, malformed, or expired.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims is the JWT payload for a chat session.
type Claims struct {
	ChatID   string `json:"chat_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// New creates an Issuer with the given signing secret. A zero or negative
// ttl falls back to DefaultTTL.
func New(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a token for username with a freshly generated chat UUID. It
// returns the signed token and the chat ID it embeds.
func (i *Issuer) Issue(username string) (string, string, error) {
	chatID := uuid.NewString()
	now := time.Now()

	claims := Claims{
		ChatID:   chatID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("session: sign token: %w", err)
	}

	return token, chatID, nil
}

// Verify parses and validates a token, returning its claims. Only HS256
// signatures with the issuer's secret are accepted.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.ChatID == "" {
		return Claims{}, fmt.Errorf("%w: missing chat_id", ErrInvalidToken)
	}

	return claims, nil
}
