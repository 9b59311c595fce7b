package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	token string
}

func (m *memoryStore) LoadToken(context.Context) (string, error) {
	if m.token == "" {
		return "", ErrTokenNotFound
	}
	return m.token, nil
}

func (m *memoryStore) SaveToken(_ context.Context, token string) error {
	m.token = token
	return nil
}

func (m *memoryStore) ClearToken(context.Context) error {
	m.token = ""
	return nil
}

func signed(t *testing.T, exp time.Time) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "customer-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestUsable(t *testing.T) {
	now := time.Now()

	assert.False(t, Usable("", now))
	assert.False(t, Usable("   ", now))
	assert.True(t, Usable("12|opaque-sanctum-token", now))
	assert.True(t, Usable(signed(t, now.Add(time.Hour)), now))
	assert.False(t, Usable(signed(t, now.Add(-time.Minute)), now))
}

func TestUsable_JWTWithoutExpiry(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	s, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	assert.True(t, Usable(s, time.Now()))
}

func TestContextSource(t *testing.T) {
	ctx := WithToken(context.Background(), "tok")

	token, err := ContextSource{}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	token, err = ContextSource{}.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestStoredSource_MissingTokenIsAnonymous(t *testing.T) {
	store := &memoryStore{}
	src := NewStoredSource(store)

	token, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.SaveToken(context.Background(), "persisted"))
	token, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}
