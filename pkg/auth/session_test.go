package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", "storefront")
	token, err := m.Issue(Session{UserID: "user-1", Email: "ana@example.com", Name: "Ana"}, time.Hour)
	require.NoError(t, err)

	s, err := m.Parse("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "user-1", Email: "ana@example.com", Name: "Ana"}, s)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", "storefront")

	expired, err := m.Issue(Session{UserID: "user-1"}, -time.Minute)
	require.NoError(t, err)
	_, err = m.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewTokenManager("other", "storefront").Issue(Session{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)
	_, err = m.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), Session{UserID: "u"})
	s, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u", s.UserID)
}
