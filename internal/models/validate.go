package models

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	msgRequired = "This field is required."
	minPassword = 8
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func tooLong(limit int, s string) string {
	return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, utf8.RuneCountInString(s))
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Validate checks the field rules of a post. It does not touch storage.
func (p *Post) Validate() error {
	ve := &ValidationError{Entity: "post"}
	switch {
	case blank(p.Title):
		ve.Add("title", msgRequired)
	case utf8.RuneCountInString(p.Title) > MaxPostTitleLength:
		ve.Add("title", tooLong(MaxPostTitleLength, p.Title))
	}
	if blank(p.Body) {
		ve.Add("body", msgRequired)
	}
	if err := validatePostBody(p.Body); err != "" {
		ve.Add("body", err)
	}
	if p.UserID == 0 {
		ve.Add("user", msgRequired)
	}
	return ve.OrNil()
}

// validatePostBody is the dedicated body rule. It runs even when the column limit would truncate.
func validatePostBody(body string) string {
	if utf8.RuneCountInString(body) > MaxPostBodyLength {
		return "Post body must be less than 1000 chars"
	}
	return ""
}

func (c *Comment) Validate() error {
	ve := &ValidationError{Entity: "comment"}
	switch {
	case blank(c.Body):
		ve.Add("body", msgRequired)
	case utf8.RuneCountInString(c.Body) > MaxCommentBodyLength:
		ve.Add("body", tooLong(MaxCommentBodyLength, c.Body))
	}
	if c.PostID == 0 {
		ve.Add("post", msgRequired)
	}
	if c.UserID == 0 {
		ve.Add("user", msgRequired)
	}
	return ve.OrNil()
}

func (v *Vote) Validate() error {
	ve := &ValidationError{Entity: "vote"}
	if !v.Kind.Valid() {
		ve.Add("kind", fmt.Sprintf("Select a valid choice. %q is not one of the available choices.", v.Kind))
	}
	if v.UserID == 0 {
		ve.Add("user", msgRequired)
	}
	switch t := v.Target.(type) {
	case PostTarget:
		if t.ID == 0 {
			ve.Add(NonFieldErrors, "Post or comment are required")
		}
	case CommentTarget:
		if t.ID == 0 {
			ve.Add(NonFieldErrors, "Post or comment are required")
		}
	default:
		ve.Add(NonFieldErrors, "Post or comment are required")
	}
	return ve.OrNil()
}

func (f *Follow) Validate() error {
	ve := &ValidationError{Entity: "follow"}
	if f.FollowerID == 0 {
		ve.Add("follower", msgRequired)
	}
	if f.FollowedID == 0 {
		ve.Add("followed", msgRequired)
	}
	if f.FollowerID != 0 && f.FollowerID == f.FollowedID {
		ve.Add(NonFieldErrors, "Can not follow yourself")
	}
	return ve.OrNil()
}

// Registration is the submitted sign-up form.
type Registration struct {
	Username     string
	Password     string
	Confirmation string
}

// Validate applies the username and password rules. Username uniqueness is checked against storage by the caller.
func (r *Registration) Validate() error {
	ve := &ValidationError{Entity: "user"}
	switch {
	case r.Username == "":
		ve.Add("username", msgRequired)
	case utf8.RuneCountInString(r.Username) > MaxUsernameLength:
		ve.Add("username", tooLong(MaxUsernameLength, r.Username))
	case !usernamePattern.MatchString(r.Username):
		ve.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	switch {
	case r.Password == "":
		ve.Add("password1", msgRequired)
	case utf8.RuneCountInString(r.Password) < minPassword:
		ve.Add("password1", fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPassword))
	case isNumeric(r.Password):
		ve.Add("password1", "This password is entirely numeric.")
	}

	switch {
	case r.Confirmation == "":
		ve.Add("password2", msgRequired)
	case r.Confirmation != r.Password:
		ve.Add("password2", "The two password fields didn't match.")
	}
	return ve.OrNil()
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// DuplicateVote is reported when a vote of the same kind by the same user already exists for the target.
func DuplicateVote(kind VoteKind, target Target) *ValidationError {
	name := "Upvote"
	if kind == Downvote {
		name = "Downvote"
	}
	field := "Post"
	if _, ok := target.(CommentTarget); ok {
		field = "Comment"
	}
	return NewValidationError("vote", NonFieldErrors, fmt.Sprintf("%s with this %s and User already exists.", name, field))
}

func DuplicateFollow() *ValidationError {
	return NewValidationError("follow", NonFieldErrors, "Follow with this Follower and Followed already exists.")
}

func DuplicateUsername() *ValidationError {
	return NewValidationError("user", "username", "A user with that username already exists.")
}
