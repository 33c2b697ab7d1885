package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartResolveEnd(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	m := NewManager(store, []byte("test-secret"), time.Hour)

	token, err := m.Start(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, store.Sessions, 1)

	userID, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, userID)

	require.NoError(t, m.End(ctx, token))
	assert.Empty(t, store.Sessions)

	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_RejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	issuer := NewManager(store, []byte("one"), time.Hour)
	verifier := NewManager(store, []byte("two"), time.Hour)

	token, err := issuer.Start(ctx, 1)
	require.NoError(t, err)

	_, err = verifier.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := NewMock()
	m := NewManager(store, []byte("test-secret"), time.Hour)

	sess, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	tokenStr, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Resolve(ctx, tokenStr)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_RejectsGarbage(t *testing.T) {
	m := NewManager(NewMock(), nil, 0)
	assert.Equal(t, 14*24*time.Hour, m.TTL())

	_, err := m.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.NoError(t, m.End(context.Background(), "not-a-token"))
}
