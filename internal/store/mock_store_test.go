package store

import (
	"context"
	"testing"

	"example.com/forum/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, m *MockStore, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x"}
	require.NoError(t, m.CreateUser(context.Background(), u))
	return u
}

func TestMockStore_UsernameUnique(t *testing.T) {
	m := NewMock()
	seedUser(t, m, "alice")

	err := m.CreateUser(context.Background(), &models.User{Username: "alice"})
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func TestMockStore_ImmutableDeletes(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	alice := seedUser(t, m, "alice")

	post := &models.Post{Title: "Hello", Body: "World", UserID: alice.ID}
	require.NoError(t, m.CreatePost(ctx, post))
	assert.False(t, post.CreatedAt.IsZero())

	comment := &models.Comment{Body: "hi", PostID: post.ID, UserID: alice.ID}
	require.NoError(t, m.CreateComment(ctx, comment))

	vote := models.NewVote(models.Upvote, alice.ID, models.PostTarget{ID: post.ID})
	require.NoError(t, m.CreateVote(ctx, vote))

	assert.ErrorIs(t, m.DeletePost(ctx, post.ID), models.ErrNotPermitted)
	assert.ErrorIs(t, m.DeleteComment(ctx, comment.ID), models.ErrNotPermitted)
	assert.ErrorIs(t, m.DeleteVote(ctx, vote.ID), models.ErrNotPermitted)
	assert.Len(t, m.Posts, 1)
	assert.Len(t, m.Comments, 1)
	assert.Len(t, m.Votes, 1)
}

func TestMockStore_VoteUniquePerKindAndTarget(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	alice := seedUser(t, m, "alice")
	post := &models.Post{Title: "t", Body: "b", UserID: alice.ID}
	require.NoError(t, m.CreatePost(ctx, post))
	comment := &models.Comment{Body: "c", PostID: post.ID, UserID: alice.ID}
	require.NoError(t, m.CreateComment(ctx, comment))

	onPost := models.PostTarget{ID: post.ID}
	require.NoError(t, m.CreateVote(ctx, models.NewVote(models.Upvote, alice.ID, onPost)))
	assert.ErrorIs(t, m.CreateVote(ctx, models.NewVote(models.Upvote, alice.ID, onPost)), models.ErrInvalid)

	// the other kind and the other target are independent
	require.NoError(t, m.CreateVote(ctx, models.NewVote(models.Downvote, alice.ID, onPost)))
	require.NoError(t, m.CreateVote(ctx, models.NewVote(models.Upvote, alice.ID, models.CommentTarget{ID: comment.ID})))

	n, err := m.CountVotes(ctx, models.Upvote, onPost)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMockStore_VoteOnMissingTarget(t *testing.T) {
	m := NewMock()
	alice := seedUser(t, m, "alice")
	err := m.CreateVote(context.Background(), models.NewVote(models.Upvote, alice.ID, models.CommentTarget{ID: 99}))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_FollowLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	alice := seedUser(t, m, "alice")
	bob := seedUser(t, m, "bob")

	f := &models.Follow{FollowerID: bob.ID, FollowedID: alice.ID}
	require.NoError(t, m.CreateFollow(ctx, f))
	assert.ErrorIs(t, m.CreateFollow(ctx, &models.Follow{FollowerID: bob.ID, FollowedID: alice.ID}), models.ErrInvalid)
	assert.ErrorIs(t, m.CreateFollow(ctx, &models.Follow{FollowerID: alice.ID, FollowedID: alice.ID}), models.ErrInvalid)

	n, _ := m.CountFollowers(ctx, alice.ID)
	assert.EqualValues(t, 1, n)
	n, _ = m.CountFollowing(ctx, bob.ID)
	assert.EqualValues(t, 1, n)

	got, err := m.GetFollow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NoError(t, m.DeleteFollow(ctx, got.ID))
	assert.ErrorIs(t, m.DeleteFollow(ctx, got.ID), ErrNotFound)

	n, _ = m.CountFollowers(ctx, alice.ID)
	assert.Zero(t, n)
}

func TestMockStore_DeleteUserProtected(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	alice := seedUser(t, m, "alice")
	bob := seedUser(t, m, "bob")
	require.NoError(t, m.CreatePost(ctx, &models.Post{Title: "t", Body: "b", UserID: alice.ID}))

	assert.ErrorIs(t, m.DeleteUser(ctx, alice.ID), ErrProtected)
	assert.NoError(t, m.DeleteUser(ctx, bob.ID))
	assert.ErrorIs(t, m.DeleteUser(ctx, bob.ID), ErrNotFound)
}

func TestMockStore_ShouldFail(t *testing.T) {
	m := NewMock()
	m.ShouldFail = true
	_, err := m.ListPosts(context.Background())
	assert.Error(t, err)
}
