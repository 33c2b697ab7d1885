package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/forum/internal/cassandra"
	"example.com/forum/internal/logger"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

var logg = logger.New()

// ErrNotFound is returned for unknown, expired or revoked sessions.
var ErrNotFound = errors.New("session not found")

// Session binds a browser to an authenticated user until it expires or is revoked.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
}

type Store interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// CassandraStore keeps sessions in Cassandra and lets the row TTL expire them.
type CassandraStore struct {
	session cassandra.SessionInterface
}

func NewCassandraStore(s cassandra.SessionInterface) *CassandraStore {
	return &CassandraStore{session: s}
}

func (s *CassandraStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error) {
	sess := &Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now().UTC()}
	err := s.session.Query(`
		INSERT INTO sessions (session_id, user_id, created_at)
		VALUES (?, ?, ?) USING TTL ?`,
		sess.ID, sess.UserID, sess.CreatedAt, int(ttl.Seconds()),
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("session", "Failed to create session", err)
		return nil, err
	}
	return sess, nil
}

func (s *CassandraStore) Get(ctx context.Context, id string) (*Session, error) {
	sess := &Session{ID: id}
	err := s.session.Query(
		`SELECT user_id, created_at FROM sessions WHERE session_id = ?`, id,
	).WithContext(ctx).Scan(&sess.UserID, &sess.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		logg.Error("session", "Failed to load session", err)
		return nil, err
	}
	return sess, nil
}

func (s *CassandraStore) Delete(ctx context.Context, id string) error {
	if err := s.session.Query(`DELETE FROM sessions WHERE session_id = ?`, id).WithContext(ctx).Exec(); err != nil {
		logg.Error("session", "Failed to delete session", err)
		return err
	}
	return nil
}

// MockStore keeps sessions in memory for tests.
type MockStore struct {
	mu         sync.Mutex
	Sessions   map[string]Session
	ShouldFail bool
}

func NewMock() *MockStore {
	return &MockStore{Sessions: make(map[string]Session)}
}

func (m *MockStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: create session failed")
	}
	sess := Session{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now()}
	m.Sessions[sess.ID] = sess
	return &sess, nil
}

func (m *MockStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: get session failed")
	}
	sess, ok := m.Sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: delete session failed")
	}
	delete(m.Sessions, id)
	return nil
}
