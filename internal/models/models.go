package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Column limits enforced both here and by the schema.
const (
	MaxUsernameLength    = 150
	MaxPostTitleLength   = 100
	MaxPostBodyLength    = 1000
	MaxCommentBodyLength = 500
)

type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	DateJoined   time.Time `gorm:"autoCreateTime;<-:create" json:"date_joined"`
}

type Post struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	Body      string    `gorm:"size:1000;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
}

func (p *Post) String() string { return p.Title }

// BeforeDelete refuses every delete issued through gorm.
func (p *Post) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: posts can not be deleted", ErrNotPermitted)
}

type Comment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Body      string    `gorm:"size:500;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
	PostID    int64     `gorm:"not null;index" json:"post_id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
}

func (c *Comment) String() string { return c.Body }

func (c *Comment) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: comments can not be deleted", ErrNotPermitted)
}

// Follow records that FollowerID follows FollowedID.
type Follow struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	FollowerID int64     `gorm:"not null;uniqueIndex:unique_follower_followed" json:"follower_id"`
	FollowedID int64     `gorm:"not null;uniqueIndex:unique_follower_followed" json:"followed_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime;<-:create" json:"created_at"`
}
