package models

import (
	"fmt"
	"time"
)

// VoteKind distinguishes upvotes from downvotes. Each kind is unique per user and target independently.
type VoteKind string

const (
	Upvote   VoteKind = "up"
	Downvote VoteKind = "down"
)

func (k VoteKind) Valid() bool { return k == Upvote || k == Downvote }

// Target is the thing a vote attaches to: either a PostTarget or a CommentTarget, never both.
type Target interface {
	fmt.Stringer
	isTarget()
}

type PostTarget struct{ ID int64 }

type CommentTarget struct{ ID int64 }

func (PostTarget) isTarget()    {}
func (CommentTarget) isTarget() {}

func (t PostTarget) String() string    { return fmt.Sprintf("post:%d", t.ID) }
func (t CommentTarget) String() string { return fmt.Sprintf("comment:%d", t.ID) }

type Vote struct {
	ID        int64     `json:"id"`
	Kind      VoteKind  `json:"kind"`
	UserID    int64     `json:"user_id"`
	Target    Target    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func NewVote(kind VoteKind, userID int64, target Target) *Vote {
	return &Vote{Kind: kind, UserID: userID, Target: target}
}

// TargetColumns splits the target into the nullable post/comment pair used by the schema.
func (v *Vote) TargetColumns() (postID, commentID *int64) {
	switch t := v.Target.(type) {
	case PostTarget:
		id := t.ID
		return &id, nil
	case CommentTarget:
		id := t.ID
		return nil, &id
	}
	return nil, nil
}

// TargetFromColumns rebuilds a Target from a stored row.
func TargetFromColumns(postID, commentID *int64) (Target, error) {
	switch {
	case postID != nil && commentID != nil:
		return nil, NewValidationError("vote", NonFieldErrors, "Post and comment are exclusive!")
	case postID != nil:
		return PostTarget{ID: *postID}, nil
	case commentID != nil:
		return CommentTarget{ID: *commentID}, nil
	}
	return nil, NewValidationError("vote", NonFieldErrors, "Post or comment are required")
}
