package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a cookie value is not a token this manager signed.
var ErrInvalidToken = errors.New("invalid session token")

// Manager issues signed session tokens. The token carries the session id and
// user id; the store row is what makes it revocable on logout.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
}

// NewManager returns a Manager. An empty secret is replaced by a random one,
// which invalidates sessions on every restart.
func NewManager(store Store, secret []byte, ttl time.Duration) *Manager {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(err)
		}
		logg.Info("session", "SESSION_SECRET not set, using a random secret")
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Manager{store: store, secret: secret, ttl: ttl}
}

// TTL is the lifetime of new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Start creates a session for userID and returns the signed token to store in the cookie.
func (m *Manager) Start(ctx context.Context, userID int64) (string, error) {
	sess, err := m.store.Create(ctx, userID, m.ttl)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.CreatedAt.Add(m.ttl)),
	})
	tokenStr, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return tokenStr, nil
}

// Resolve returns the user bound to token. The session must still exist in the store.
func (m *Manager) Resolve(ctx context.Context, tokenStr string) (int64, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return 0, err
	}

	sess, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		return 0, err
	}
	if strconv.FormatInt(sess.UserID, 10) != claims.Subject {
		return 0, ErrInvalidToken
	}
	return sess.UserID, nil
}

// End revokes the session behind token. Invalid tokens are ignored.
func (m *Manager) End(ctx context.Context, tokenStr string) error {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}

func (m *Manager) parse(tokenStr string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
