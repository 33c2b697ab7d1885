// Package forum applies the entity rules before anything reaches storage and
// announces successful writes on the activity stream.
package forum

import (
	"context"
	"errors"
	"fmt"

	appkafka "example.com/forum/internal/broker"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/metrics"
	"example.com/forum/internal/models"
	"example.com/forum/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var logg = logger.New()

// ErrBadCredentials is the login failure. It is a validation error so the login form can show it.
var ErrBadCredentials = models.NewValidationError("login", models.NonFieldErrors,
	"Please enter a correct username and password. Note that both fields may be case-sensitive.")

// EventPublisher writes activity events. Implemented by appkafka.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, e appkafka.Event) error
}

type Service struct {
	store      store.StoreInterface
	events     EventPublisher
	bcryptCost int
}

type Option func(*Service)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func New(st store.StoreInterface, events EventPublisher, opts ...Option) *Service {
	s := &Service{store: st, events: events, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reject counts and returns a validation failure.
func reject(entity string, err error) error {
	if errors.Is(err, models.ErrInvalid) {
		metrics.RuleViolations.WithLabelValues(entity).Inc()
	}
	return err
}

// publish never fails the caller: the write already happened.
func (s *Service) publish(ctx context.Context, e appkafka.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		metrics.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
		logg.Error("forum", "Failed to publish "+string(e.Type)+" event", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(e.Type), "ok").Inc()
}

// --- Users ---

// Register validates the sign-up form, rejects taken usernames and stores a bcrypt hash.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, reject("user", err)
	}

	_, err := s.store.GetUserByUsername(ctx, reg.Username)
	switch {
	case err == nil:
		return nil, reject("user", models.DuplicateUsername())
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: reg.Username, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, reject("user", err)
	}
	return u, nil
}

// Authenticate checks username and password. Any mismatch yields ErrBadCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrBadCredentials
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// --- Posts and comments ---

func (s *Service) CreatePost(ctx context.Context, p *models.Post) error {
	if err := p.Validate(); err != nil {
		return reject("post", err)
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return reject("post", err)
	}

	e := appkafka.NewEvent(appkafka.PostCreated, p.UserID)
	e.Post = p
	s.publish(ctx, e)
	return nil
}

func (s *Service) CreateComment(ctx context.Context, c *models.Comment) error {
	if err := c.Validate(); err != nil {
		return reject("comment", err)
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return reject("comment", err)
	}

	e := appkafka.NewEvent(appkafka.CommentCreated, c.UserID)
	e.Comment = c
	s.publish(ctx, e)
	return nil
}

// --- Votes ---

// CastVote validates v, pre-checks the one-vote-per-kind-per-target rule and persists it.
// The storage unique index still decides when two identical requests race.
func (s *Service) CastVote(ctx context.Context, v *models.Vote) error {
	if err := v.Validate(); err != nil {
		return reject("vote", err)
	}

	exists, err := s.store.VoteExists(ctx, v.Kind, v.UserID, v.Target)
	if err != nil {
		return err
	}
	if exists {
		return reject("vote", models.DuplicateVote(v.Kind, v.Target))
	}

	if err := s.store.CreateVote(ctx, v); err != nil {
		return reject("vote", err)
	}

	e := appkafka.NewEvent(appkafka.VoteCreated, v.UserID)
	e.Vote = appkafka.NewVoteRef(v)
	s.publish(ctx, e)
	return nil
}

// VoteOnPost resolves the post and casts a vote on it. It returns the post id to redirect to.
func (s *Service) VoteOnPost(ctx context.Context, kind models.VoteKind, userID, postID int64) (int64, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	if err := s.CastVote(ctx, models.NewVote(kind, userID, models.PostTarget{ID: post.ID})); err != nil {
		return 0, err
	}
	return post.ID, nil
}

// VoteOnComment resolves the comment and casts a vote on it. It returns the id of the
// comment's parent post, which is where the caller is redirected.
func (s *Service) VoteOnComment(ctx context.Context, kind models.VoteKind, userID, commentID int64) (int64, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if err := s.CastVote(ctx, models.NewVote(kind, userID, models.CommentTarget{ID: comment.ID})); err != nil {
		return 0, err
	}
	return comment.PostID, nil
}

// --- Follows ---

// Follow makes followerID follow followedID. Self-follows and duplicates are validation failures.
func (s *Service) Follow(ctx context.Context, followerID, followedID int64) (*models.Follow, error) {
	f := &models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := f.Validate(); err != nil {
		return nil, reject("follow", err)
	}

	exists, err := s.store.FollowExists(ctx, followerID, followedID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, reject("follow", models.DuplicateFollow())
	}

	if err := s.store.CreateFollow(ctx, f); err != nil {
		return nil, reject("follow", err)
	}

	e := appkafka.NewEvent(appkafka.FollowCreated, followerID)
	e.Follow = f
	s.publish(ctx, e)
	return f, nil
}

// Unfollow deletes the follow of followedID by followerID. A missing follow is store.ErrNotFound.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID int64) error {
	f, err := s.store.GetFollow(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFollow(ctx, f.ID); err != nil {
		return err
	}

	e := appkafka.NewEvent(appkafka.FollowDeleted, followerID)
	e.Follow = f
	s.publish(ctx, e)
	return nil
}
