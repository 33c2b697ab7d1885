package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	appkafka "example.com/forum/internal/broker"
	"example.com/forum/internal/feed"
	"example.com/forum/internal/forum"
	"example.com/forum/internal/middleware"
	"example.com/forum/internal/models"
	"example.com/forum/internal/session"
	"example.com/forum/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

//
// --- Setup test server ---
//

type testEnv struct {
	srv      *Server
	handler  http.Handler
	store    *store.MockStore
	feed     *feed.MockStore
	kafka    *appkafka.MockKafka
	sessions *session.Manager
	forum    *forum.Service
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMock()
	kafka := &appkafka.MockKafka{}
	svc := forum.New(st, appkafka.NewPublisher(kafka), forum.WithBcryptCost(bcrypt.MinCost))
	sessions := session.NewManager(session.NewMock(), []byte("test-secret"), time.Hour)
	fd := feed.NewMock()

	s, err := New(st, svc, sessions, fd)
	require.NoError(t, err)

	return &testEnv{
		srv:      s,
		handler:  s.Routes(),
		store:    st,
		feed:     fd,
		kafka:    kafka,
		sessions: sessions,
		forum:    svc,
	}
}

//
// --- Helpers ---
//

// do sends one request through the router. token is the session cookie value, empty for anonymous.
func (e *testEnv) do(t *testing.T, method, path string, form url.Values, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createUser(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := e.forum.Register(context.Background(), models.Registration{
		Username: name, Password: "correct-horse", Confirmation: "correct-horse",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := e.sessions.Start(context.Background(), u.ID)
	require.NoError(t, err)
	return token
}

func (e *testEnv) createPost(t *testing.T, u *models.User) *models.Post {
	t.Helper()
	p := &models.Post{Title: "Hello", Body: "World", UserID: u.ID}
	require.NoError(t, e.forum.CreatePost(context.Background(), p))
	return p
}

func (e *testEnv) votes(t *testing.T, kind models.VoteKind, target models.Target) int64 {
	t.Helper()
	n, err := e.store.CountVotes(context.Background(), kind, target)
	require.NoError(t, err)
	return n
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, location, rec.Header().Get("Location"))
}

//
// --- Tests ---
//

func TestHomePage(t *testing.T) {
	e := setupTestServer(t)

	rec := e.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Log in")

	alice := e.createUser(t, "alice")
	rec = e.do(t, http.MethodGet, "/", nil, e.login(t, alice))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	assert.Contains(t, rec.Body.String(), "Log out")
}

func TestRegisterLoginLogout(t *testing.T) {
	e := setupTestServer(t)

	rec := e.do(t, http.MethodPost, "/user/create/", url.Values{
		"username": {"alice"}, "password1": {"correct-horse"}, "password2": {"correct-horse"},
	}, "")
	assertRedirect(t, rec, "/user/login/")

	rec = e.do(t, http.MethodPost, "/user/login/", url.Values{
		"username": {"alice"}, "password": {"correct-horse"},
	}, "")
	assertRedirect(t, rec, "/")

	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			token = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, token)

	userID, err := e.sessions.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice", e.store.Users[userID].Username)

	rec = e.do(t, http.MethodPost, "/user/logout/", nil, token)
	assertRedirect(t, rec, "/")
	_, err = e.sessions.Resolve(context.Background(), token)
	assert.Error(t, err)

	// The revoked cookie no longer grants access
	rec = e.do(t, http.MethodGet, "/post/create/", nil, token)
	assertRedirect(t, rec, "/user/login/")
}

func TestRegisterInvalidRerendersForm(t *testing.T) {
	e := setupTestServer(t)

	rec := e.do(t, http.MethodPost, "/user/create/", url.Values{
		"username": {"bad name!"}, "password1": {"12345678"}, "password2": {"12345678"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a valid username.")
	assert.Contains(t, rec.Body.String(), "This password is entirely numeric.")
	assert.Empty(t, e.store.Users)
}

func TestLoginBadCredentials(t *testing.T) {
	e := setupTestServer(t)
	e.createUser(t, "alice")

	rec := e.do(t, http.MethodPost, "/user/login/", url.Values{
		"username": {"alice"}, "password": {"wrong-horse"},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter a correct username and password.")
	assert.Empty(t, rec.Result().Cookies())
}

func TestUserListAndDetail(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	e.createUser(t, "bob")
	e.createPost(t, alice)

	rec := e.do(t, http.MethodGet, "/user/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	assert.Contains(t, rec.Body.String(), "bob")

	rec = e.do(t, http.MethodGet, userURL(alice.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello")
}

// create user alice, create a post -> redirect to its detail page, which renders
func TestCreatePostFlow(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	token := e.login(t, alice)

	rec := e.do(t, http.MethodGet, "/post/create/", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/post/create/", url.Values{"title": {"Hello"}, "body": {"World"}}, token)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Len(t, e.store.Posts, 1)

	var post models.Post
	for _, p := range e.store.Posts {
		post = p
	}
	assert.Equal(t, alice.ID, post.UserID)
	assert.Equal(t, postURL(post.ID), rec.Header().Get("Location"))

	rec = e.do(t, http.MethodGet, postURL(post.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello")
	assert.Contains(t, rec.Body.String(), "World")

	rec = e.do(t, http.MethodGet, "/post/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello")

	events := e.kafka.Written()
	require.Len(t, events, 1)
	assert.Equal(t, appkafka.PostCreated, events[0].Type)
	assert.Equal(t, post.ID, events[0].Post.ID)
}

func TestCreatePostInvalidRerendersForm(t *testing.T) {
	e := setupTestServer(t)
	token := e.login(t, e.createUser(t, "alice"))

	rec := e.do(t, http.MethodPost, "/post/create/", url.Values{
		"title": {strings.Repeat("t", 101)}, "body": {"World"},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ensure this value has at most 100 characters (it has 101).")
	assert.Contains(t, rec.Body.String(), "World")
	assert.Empty(t, e.store.Posts)
}

func TestCreateCommentFlow(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)
	token := e.login(t, alice)

	rec := e.do(t, http.MethodPost, postURL(post.ID)+"comment/create/", url.Values{"body": {"First!"}}, token)
	assertRedirect(t, rec, postURL(post.ID))
	require.Len(t, e.store.Comments, 1)

	rec = e.do(t, http.MethodGet, postURL(post.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "First!")
}

// an invalid comment is a request failure, not a form re-display
func TestCreateCommentInvalidIsBadRequest(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)

	rec := e.do(t, http.MethodPost, postURL(post.ID)+"comment/create/", url.Values{"body": {""}}, e.login(t, alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.store.Comments)
}

func TestAnonymousUpvoteRedirectsToLogin(t *testing.T) {
	e := setupTestServer(t)
	post := e.createPost(t, e.createUser(t, "alice"))

	rec := e.do(t, http.MethodPost, postURL(post.ID)+"upvote/create/", nil, "")
	assertRedirect(t, rec, "/user/login/")
	assert.Zero(t, e.votes(t, models.Upvote, models.PostTarget{ID: post.ID}))
}

func TestAnonymousProtectedRoutesRedirect(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/post/create/"},
		{http.MethodPost, "/post/create/"},
		{http.MethodPost, postURL(post.ID) + "comment/create/"},
		{http.MethodPost, postURL(post.ID) + "downvote/create/"},
		{http.MethodPost, userURL(alice.ID) + "follow/create/"},
		{http.MethodPost, userURL(alice.ID) + "follow/delete/"},
		{http.MethodGet, "/feed/"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			assertRedirect(t, e.do(t, tc.method, tc.path, nil, ""), "/user/login/")
		})
	}
}

// the second upvote by the same user fails; a downvote is a separate kind
func TestDoubleUpvoteFails(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)
	token := e.login(t, alice)
	target := models.PostTarget{ID: post.ID}

	rec := e.do(t, http.MethodPost, postURL(post.ID)+"upvote/create/", nil, token)
	assertRedirect(t, rec, postURL(post.ID))

	rec = e.do(t, http.MethodPost, postURL(post.ID)+"upvote/create/", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upvote with this Post and User already exists.")
	assert.Equal(t, int64(1), e.votes(t, models.Upvote, target))

	rec = e.do(t, http.MethodPost, postURL(post.ID)+"downvote/create/", nil, token)
	assertRedirect(t, rec, postURL(post.ID))
	assert.Equal(t, int64(1), e.votes(t, models.Downvote, target))

	rec = e.do(t, http.MethodGet, postURL(post.ID), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<span class="upvotes">1</span>`)
	assert.Contains(t, rec.Body.String(), `<span class="downvotes">1</span>`)
}

func TestCommentVoteRedirectsToParentPost(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)
	other := e.createPost(t, alice)
	comment := &models.Comment{Body: "Nice", PostID: post.ID, UserID: alice.ID}
	require.NoError(t, e.forum.CreateComment(context.Background(), comment))
	token := e.login(t, alice)

	path := postURL(post.ID) + "comment/" + strconv.FormatInt(comment.ID, 10) + "/upvote/create/"
	rec := e.do(t, http.MethodPost, path, nil, token)
	assertRedirect(t, rec, postURL(post.ID))
	assert.Equal(t, int64(1), e.votes(t, models.Upvote, models.CommentTarget{ID: comment.ID}))
	assert.Zero(t, e.votes(t, models.Upvote, models.PostTarget{ID: post.ID}))

	// the comment does not belong to other
	path = postURL(other.ID) + "comment/" + strconv.FormatInt(comment.ID, 10) + "/downvote/create/"
	rec = e.do(t, http.MethodPost, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, e.votes(t, models.Downvote, models.CommentTarget{ID: comment.ID}))
}

func TestFollowThenUnfollow(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	token := e.login(t, bob)
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, userURL(alice.ID)+"follow/create/", nil, token)
	assertRedirect(t, rec, userURL(alice.ID))
	n, err := e.store.CountFollowers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec = e.do(t, http.MethodGet, userURL(alice.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unfollow")

	// duplicate follow
	rec = e.do(t, http.MethodPost, userURL(alice.ID)+"follow/create/", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, userURL(alice.ID)+"follow/delete/", nil, token)
	assertRedirect(t, rec, userURL(alice.ID))
	n, err = e.store.CountFollowers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// nothing left to delete
	rec = e.do(t, http.MethodPost, userURL(alice.ID)+"follow/delete/", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelfFollowFails(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")

	rec := e.do(t, http.MethodPost, userURL(alice.ID)+"follow/create/", nil, e.login(t, alice))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Can not follow yourself")
	assert.Empty(t, e.store.Follows)
}

func TestMissingIDsAreNotFound(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	post := e.createPost(t, alice)
	token := e.login(t, alice)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/post/999/"},
		{http.MethodGet, "/post/abc/"},
		{http.MethodGet, "/user/999/"},
		{http.MethodPost, "/post/999/upvote/create/"},
		{http.MethodPost, "/post/999/comment/create/"},
		{http.MethodPost, postURL(post.ID) + "comment/999/upvote/create/"},
		{http.MethodPost, "/user/999/follow/create/"},
		{http.MethodPost, "/user/999/follow/delete/"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := e.do(t, tc.method, tc.path, url.Values{"body": {"x"}}, token)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestFeedPage(t *testing.T) {
	e := setupTestServer(t)
	alice := e.createUser(t, "alice")
	bob := e.createUser(t, "bob")
	post := e.createPost(t, alice)
	require.NoError(t, e.feed.AddToFeed(context.Background(), bob.ID, feed.EntryFromPost(post)))

	rec := e.do(t, http.MethodGet, "/feed/", nil, e.login(t, bob))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), postURL(post.ID))
}

func TestStoreFailureIsServerError(t *testing.T) {
	e := setupTestServer(t)
	e.store.ShouldFail = true

	rec := e.do(t, http.MethodGet, "/post/", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// a failing event stream never fails the write
func TestKafkaWriteErrorDoesNotFailRequest(t *testing.T) {
	e := setupTestServer(t)
	token := e.login(t, e.createUser(t, "alice"))
	e.kafka.ShouldFail = true

	rec := e.do(t, http.MethodPost, "/post/create/", url.Values{"title": {"Hello"}, "body": {"World"}}, token)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Len(t, e.store.Posts, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	e := setupTestServer(t)
	e.do(t, http.MethodGet, "/post/", nil, "")

	rec := e.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forum_http_requests_total")
}
