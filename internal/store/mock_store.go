package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/forum/internal/models"
)

var errMockFail = errors.New("mock: store failure")

// MockStore simulates Postgres for testing. It enforces the same unique, foreign key,
// cascade and protect rules as the schema.
type MockStore struct {
	mu sync.Mutex

	Users    map[int64]models.User
	Posts    map[int64]models.Post
	Comments map[int64]models.Comment
	Votes    map[int64]models.Vote
	Follows  map[int64]models.Follow

	ShouldFail bool // flag to simulate failures

	lastID int64
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[int64]models.User),
		Posts:    make(map[int64]models.Post),
		Comments: make(map[int64]models.Comment),
		Votes:    make(map[int64]models.Vote),
		Follows:  make(map[int64]models.Follow),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

func (m *MockStore) fail() error {
	if m.ShouldFail {
		return errMockFail
	}
	return nil
}

func sortedKeys[V any](in map[int64]V) []int64 {
	keys := make([]int64, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// --- User operations ---

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for _, existing := range m.Users {
		if existing.Username == u.Username {
			return models.DuplicateUsername()
		}
	}
	u.ID = m.nextID()
	u.DateJoined = time.Now()
	m.Users[u.ID] = *u
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	u, ok := m.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	for _, u := range m.Users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var res []models.User
	for _, id := range sortedKeys(m.Users) {
		res = append(res, m.Users[id])
	}
	return res, nil
}

func (m *MockStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.Users[id]; !ok {
		return ErrNotFound
	}
	for _, p := range m.Posts {
		if p.UserID == id {
			return fmt.Errorf("%w: posts_user_id_fkey", ErrProtected)
		}
	}
	for _, c := range m.Comments {
		if c.UserID == id {
			return fmt.Errorf("%w: comments_user_id_fkey", ErrProtected)
		}
	}
	for _, v := range m.Votes {
		if v.UserID == id {
			return fmt.Errorf("%w: votes_user_id_fkey", ErrProtected)
		}
	}
	for _, f := range m.Follows {
		if f.FollowerID == id || f.FollowedID == id {
			return fmt.Errorf("%w: follows_user_fkey", ErrProtected)
		}
	}
	delete(m.Users, id)
	return nil
}

// --- Post operations ---

func (m *MockStore) CreatePost(ctx context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.Users[p.UserID]; !ok {
		return fmt.Errorf("%w: posts_user_id_fkey", ErrNotFound)
	}
	p.ID = m.nextID()
	p.CreatedAt = time.Now()
	m.Posts[p.ID] = *p
	return nil
}

func (m *MockStore) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	p, ok := m.Posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MockStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	return m.listPosts(func(models.Post) bool { return true })
}

func (m *MockStore) ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	return m.listPosts(func(p models.Post) bool { return p.UserID == userID })
}

func (m *MockStore) listPosts(keep func(models.Post) bool) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var res []models.Post
	for _, id := range sortedKeys(m.Posts) {
		if p := m.Posts[id]; keep(p) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (m *MockStore) DeletePost(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: posts can not be deleted", models.ErrNotPermitted)
}

// --- Comment operations ---

func (m *MockStore) CreateComment(ctx context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.Posts[c.PostID]; !ok {
		return fmt.Errorf("%w: comments_post_id_fkey", ErrNotFound)
	}
	if _, ok := m.Users[c.UserID]; !ok {
		return fmt.Errorf("%w: comments_user_id_fkey", ErrNotFound)
	}
	c.ID = m.nextID()
	c.CreatedAt = time.Now()
	m.Comments[c.ID] = *c
	return nil
}

func (m *MockStore) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	c, ok := m.Comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MockStore) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var res []models.Comment
	for _, id := range sortedKeys(m.Comments) {
		if c := m.Comments[id]; c.PostID == postID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (m *MockStore) DeleteComment(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: comments can not be deleted", models.ErrNotPermitted)
}

// --- Vote operations ---

func (m *MockStore) CreateVote(ctx context.Context, v *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	switch t := v.Target.(type) {
	case models.PostTarget:
		if _, ok := m.Posts[t.ID]; !ok {
			return fmt.Errorf("%w: votes_post_id_fkey", ErrNotFound)
		}
	case models.CommentTarget:
		if _, ok := m.Comments[t.ID]; !ok {
			return fmt.Errorf("%w: votes_comment_id_fkey", ErrNotFound)
		}
	default:
		return models.NewValidationError("vote", models.NonFieldErrors, "Post or comment are required")
	}
	if m.voteExists(v.Kind, v.UserID, v.Target) {
		return models.DuplicateVote(v.Kind, v.Target)
	}
	v.ID = m.nextID()
	v.CreatedAt = time.Now()
	m.Votes[v.ID] = *v
	return nil
}

func (m *MockStore) voteExists(kind models.VoteKind, userID int64, target models.Target) bool {
	for _, v := range m.Votes {
		if v.Kind == kind && v.UserID == userID && v.Target == target {
			return true
		}
	}
	return false
}

func (m *MockStore) VoteExists(ctx context.Context, kind models.VoteKind, userID int64, target models.Target) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return false, err
	}
	return m.voteExists(kind, userID, target), nil
}

func (m *MockStore) CountVotes(ctx context.Context, kind models.VoteKind, target models.Target) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, v := range m.Votes {
		if v.Kind == kind && v.Target == target {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) DeleteVote(ctx context.Context, id int64) error {
	return fmt.Errorf("%w: votes can not be deleted", models.ErrNotPermitted)
}

// --- Follow operations ---

func (m *MockStore) CreateFollow(ctx context.Context, f *models.Follow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if f.FollowerID == f.FollowedID {
		return models.NewValidationError("follow", models.NonFieldErrors, "Can not follow yourself")
	}
	if _, ok := m.Users[f.FollowerID]; !ok {
		return fmt.Errorf("%w: follows_follower_id_fkey", ErrNotFound)
	}
	if _, ok := m.Users[f.FollowedID]; !ok {
		return fmt.Errorf("%w: follows_followed_id_fkey", ErrNotFound)
	}
	if _, ok := m.findFollow(f.FollowerID, f.FollowedID); ok {
		return models.DuplicateFollow()
	}
	f.ID = m.nextID()
	f.CreatedAt = time.Now()
	m.Follows[f.ID] = *f
	return nil
}

func (m *MockStore) findFollow(followerID, followedID int64) (models.Follow, bool) {
	for _, f := range m.Follows {
		if f.FollowerID == followerID && f.FollowedID == followedID {
			return f, true
		}
	}
	return models.Follow{}, false
}

func (m *MockStore) GetFollow(ctx context.Context, followerID, followedID int64) (*models.Follow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	f, ok := m.findFollow(followerID, followedID)
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *MockStore) FollowExists(ctx context.Context, followerID, followedID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return false, err
	}
	_, ok := m.findFollow(followerID, followedID)
	return ok, nil
}

func (m *MockStore) DeleteFollow(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.Follows[id]; !ok {
		return ErrNotFound
	}
	delete(m.Follows, id)
	return nil
}

func (m *MockStore) CountFollowers(ctx context.Context, userID int64) (int64, error) {
	ids, err := m.ListFollowerIDs(ctx, userID)
	return int64(len(ids)), err
}

func (m *MockStore) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, f := range m.Follows {
		if f.FollowerID == userID {
			n++
		}
	}
	return n, nil
}

func (m *MockStore) ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	var res []int64
	for _, id := range sortedKeys(m.Follows) {
		if f := m.Follows[id]; f.FollowedID == userID {
			res = append(res, f.FollowerID)
		}
	}
	return res, nil
}
