// Package token issues and verifies the signed bearer tokens that carry a
// caller's user id between requests. Tokens are never persisted; each request
// re-checks the signature and expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Generate signs an HS256 token carrying the user id, issue time and expiry.
func (s *Service) Generate(userID string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	})
	return t.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the embedded user id.
// Any failure collapses into ErrInvalidToken so callers cannot tell a forged
// token from an expired one.
func (s *Service) Verify(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
