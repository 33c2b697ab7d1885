package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/forum/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// voteRow is the storage shape of a vote: two nullable target columns guarded by a CHECK constraint.
type voteRow struct {
	ID        int64     `gorm:"primaryKey"`
	Kind      string    `gorm:"size:4;not null"`
	UserID    int64     `gorm:"not null"`
	PostID    *int64    `gorm:"uniqueIndex:unique_post_vote"`
	CommentID *int64    `gorm:"uniqueIndex:unique_comment_vote"`
	CreatedAt time.Time `gorm:"autoCreateTime;<-:create"`
}

func (voteRow) TableName() string { return "votes" }

func (*voteRow) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: votes can not be deleted", models.ErrNotPermitted)
}

// targetClause returns the WHERE fragment selecting votes on target.
func targetClause(target models.Target) (string, int64, error) {
	switch t := target.(type) {
	case models.PostTarget:
		return "post_id = ?", t.ID, nil
	case models.CommentTarget:
		return "comment_id = ?", t.ID, nil
	}
	return "", 0, models.NewValidationError("vote", models.NonFieldErrors, "Post or comment are required")
}

// --- User operations ---

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		logg.Error("store", "Failed to create user", err)
		return translate(err)
	}
	logg.Info("store", "User created (username anonymized)")
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetUserByUsername returns ErrNotFound when no user has that username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		logg.Error("store", "Failed to list users", err)
		return nil, err
	}
	return users, nil
}

// DeleteUser fails with ErrProtected while any post, comment, vote or follow references the user.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(res.Error, &pgErr) && pgErr.Code == codeForeignKey {
			return fmt.Errorf("%w: %s", ErrProtected, pgErr.ConstraintName)
		}
		logg.Error("store", "Failed to delete user", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Post operations ---

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		logg.Error("store", "Failed to add post", err)
		return translate(err)
	}
	logg.Info("store", "Post added to posts table (post content anonymized)")
	return nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Order("id").Find(&posts).Error; err != nil {
		logg.Error("store", "Failed to list posts", err)
		return nil, err
	}
	return posts, nil
}

func (s *Store) ListPostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	var posts []models.Post
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&posts).Error; err != nil {
		logg.Error("store", "Failed to list user posts", err)
		return nil, err
	}
	return posts, nil
}

// DeletePost always fails: posts are immutable once created.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.Post{ID: id}).Error
}

// --- Comment operations ---

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		logg.Error("store", "Failed to add comment", err)
		return translate(err)
	}
	return nil
}

func (s *Store) GetComment(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("id").Find(&comments).Error; err != nil {
		logg.Error("store", "Failed to list comments", err)
		return nil, err
	}
	return comments, nil
}

// DeleteComment always fails: comments are immutable once created.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.Comment{ID: id}).Error
}

// --- Vote operations ---

// CreateVote inserts v. The partial unique indexes are the authoritative duplicate guard.
func (s *Store) CreateVote(ctx context.Context, v *models.Vote) error {
	postID, commentID := v.TargetColumns()
	row := voteRow{Kind: string(v.Kind), UserID: v.UserID, PostID: postID, CommentID: commentID}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUnique {
			err = models.DuplicateVote(v.Kind, v.Target)
		} else {
			err = translate(err)
		}
		logg.Error("store", "Failed to add vote", err)
		return err
	}

	v.ID = row.ID
	v.CreatedAt = row.CreatedAt
	return nil
}

func (s *Store) VoteExists(ctx context.Context, kind models.VoteKind, userID int64, target models.Target) (bool, error) {
	clause, id, err := targetClause(target)
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&voteRow{}).
		Where("kind = ? AND user_id = ?", string(kind), userID).
		Where(clause, id).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) CountVotes(ctx context.Context, kind models.VoteKind, target models.Target) (int64, error) {
	clause, id, err := targetClause(target)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&voteRow{}).
		Where("kind = ?", string(kind)).
		Where(clause, id).
		Count(&n).Error
	return n, err
}

// DeleteVote always fails: votes are immutable once cast.
func (s *Store) DeleteVote(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&voteRow{ID: id}).Error
}

// --- Follow operations ---

func (s *Store) CreateFollow(ctx context.Context, f *models.Follow) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return translate(err)
	}
	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

func (s *Store) GetFollow(ctx context.Context, followerID, followedID int64) (*models.Follow, error) {
	var f models.Follow
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (s *Store) FollowExists(ctx context.Context, followerID, followedID int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&n).Error
	return n > 0, err
}

// DeleteFollow removes a follow. It is the only delete path exposed for user-created records.
func (s *Store) DeleteFollow(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.Follow{}, id)
	if res.Error != nil {
		logg.Error("store", "Failed to delete follow relationship", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	logg.Info("store", "Follow relationship deleted (user IDs anonymized)")
	return nil
}

func (s *Store) CountFollowers(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).Where("followed_id = ?", userID).Count(&n).Error
	return n, err
}

func (s *Store) CountFollowing(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&n).Error
	return n, err
}

func (s *Store) ListFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followed_id = ?", userID).
		Order("id").
		Pluck("follower_id", &ids).Error
	if err != nil {
		logg.Error("store", "Failed to get followers", err)
		return nil, err
	}
	return ids, nil
}
