// Package auth holds the bearer token plumbing. Tokens are issued elsewhere;
// this package only stores, reads and checks them for expiry.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenNotFound = errors.New("auth token not found")

// Store persists the token between runs.
type Store interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

type contextKey struct{}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(contextKey{}).(string); ok {
		return token
	}
	return ""
}

// ContextSource reads the token placed in the request context by middleware.
type ContextSource struct{}

func (ContextSource) Token(ctx context.Context) (string, error) {
	return TokenFromContext(ctx), nil
}

type StaticSource string

func (s StaticSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// StoredSource reads the token from persisted storage on every call, so a
// sign-out in another process is picked up on the next request.
type StoredSource struct {
	store Store
}

func NewStoredSource(store Store) *StoredSource {
	return &StoredSource{store: store}
}

func (s *StoredSource) Token(ctx context.Context) (string, error) {
	token, err := s.store.LoadToken(ctx)
	if errors.Is(err, ErrTokenNotFound) {
		return "", nil
	}
	return token, err
}

// Usable reports whether token can be sent. Opaque tokens are accepted as-is;
// JWTs are rejected once their exp claim has passed. The signature is not
// checked here, that is the backend's job.
func Usable(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Before(exp.Time)
}
