package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/forum/internal/cassandra"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/models"
)

var logg = logger.New()

// Entry is a post as it appears in a follower's home timeline.
type Entry struct {
	PostID    int64     `json:"post_id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func EntryFromPost(p *models.Post) Entry {
	return Entry{PostID: p.ID, AuthorID: p.UserID, Title: p.Title, Body: p.Body, CreatedAt: p.CreatedAt}
}

type Store interface {
	AddToFeed(ctx context.Context, userID int64, e Entry) error
	GetFeed(ctx context.Context, userID int64, limit int) ([]Entry, error)
}

// CassandraStore reads and writes the feed_by_user table.
type CassandraStore struct {
	session cassandra.SessionInterface
}

func NewCassandraStore(s cassandra.SessionInterface) *CassandraStore {
	return &CassandraStore{session: s}
}

func (s *CassandraStore) AddToFeed(ctx context.Context, userID int64, e Entry) error {
	if err := s.session.Query(`
		INSERT INTO feed_by_user (user_id, created_at, post_id, author_id, title, body)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, e.CreatedAt, e.PostID, e.AuthorID, e.Title, e.Body,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("feed", "Failed to add post to feed", err)
		return err
	}

	logg.Debug("feed", "Post added to user's feed (IDs and content anonymized)")
	return nil
}

// GetFeed returns the newest entries first.
func (s *CassandraStore) GetFeed(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	iter := s.session.Query(`
		SELECT post_id, author_id, title, body, created_at
		FROM feed_by_user WHERE user_id = ? LIMIT ?`,
		userID, limit,
	).WithContext(ctx).Iter()

	var res []Entry
	var e Entry
	for iter.Scan(&e.PostID, &e.AuthorID, &e.Title, &e.Body, &e.CreatedAt) {
		res = append(res, e)
	}

	if err := iter.Close(); err != nil {
		logg.Error("feed", "Failed to retrieve user feed", err)
		return nil, err
	}
	return res, nil
}

// MockStore simulates the Cassandra timeline for testing.
type MockStore struct {
	mu         sync.Mutex
	Feed       map[int64][]Entry
	ShouldFail bool // flag to simulate failures
}

func NewMock() *MockStore {
	return &MockStore{Feed: make(map[int64][]Entry)}
}

func (m *MockStore) AddToFeed(ctx context.Context, userID int64, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: add to feed failed")
	}
	m.Feed[userID] = append(m.Feed[userID], e)
	return nil
}

func (m *MockStore) GetFeed(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: get feed failed")
	}
	entries := append([]Entry(nil), m.Feed[userID]...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
