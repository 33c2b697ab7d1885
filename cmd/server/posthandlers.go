package server

import (
	"errors"
	"net/http"
	"strconv"

	"example.com/forum/internal/middleware"
	"example.com/forum/internal/models"
)

// feedLimit caps how many timeline entries the feed page shows.
const feedLimit = 50

// --- Posts ---

func (s *Server) postListHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListPosts(r.Context())
	if err != nil {
		s.serverError(w, "http/posts", err)
		return
	}
	s.render(w, r, http.StatusOK, "post_list.html", &templateData{Posts: posts})
}

func (s *Server) postCreateFormHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "post_create.html", nil)
}

// postCreateHandler stores a post owned by the caller. Invalid input re-renders the
// form with its errors and status 200.
func (s *Server) postCreateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	post := &models.Post{
		Title:  r.PostForm.Get("title"),
		Body:   r.PostForm.Get("body"),
		UserID: userID,
	}

	err := s.forum.CreatePost(r.Context(), post)
	if errors.Is(err, models.ErrInvalid) {
		s.render(w, r, http.StatusOK, "post_create.html", &templateData{
			Form:   map[string]string{"title": post.Title, "body": post.Body},
			Errors: models.FieldErrors(err),
		})
		return
	}
	if err != nil {
		s.serverError(w, "http/posts", err)
		return
	}

	logg.Info("http/posts", "Post created successfully by user_id="+strconv.FormatInt(userID, 10))
	http.Redirect(w, r, postURL(post.ID), http.StatusFound)
}

// postDetailHandler shows a post with its vote counts and its comments.
func (s *Server) postDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w)
		return
	}
	ctx := r.Context()

	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		s.fail(w, "http/posts", err)
		return
	}

	authors := map[int64]string{}
	author := func(userID int64) (string, error) {
		if name, ok := authors[userID]; ok {
			return name, nil
		}
		u, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return "", err
		}
		authors[userID] = u.Username
		return u.Username, nil
	}

	view := &postView{Post: *post}
	if view.Author, err = author(post.UserID); err != nil {
		s.serverError(w, "http/posts", err)
		return
	}
	target := models.PostTarget{ID: post.ID}
	if view.Upvotes, err = s.store.CountVotes(ctx, models.Upvote, target); err != nil {
		s.serverError(w, "http/posts", err)
		return
	}
	if view.Downvotes, err = s.store.CountVotes(ctx, models.Downvote, target); err != nil {
		s.serverError(w, "http/posts", err)
		return
	}

	comments, err := s.store.ListComments(ctx, post.ID)
	if err != nil {
		s.serverError(w, "http/posts", err)
		return
	}
	for _, c := range comments {
		cv := commentView{Comment: c}
		if cv.Author, err = author(c.UserID); err != nil {
			s.serverError(w, "http/posts", err)
			return
		}
		ct := models.CommentTarget{ID: c.ID}
		if cv.Upvotes, err = s.store.CountVotes(ctx, models.Upvote, ct); err != nil {
			s.serverError(w, "http/posts", err)
			return
		}
		if cv.Downvotes, err = s.store.CountVotes(ctx, models.Downvote, ct); err != nil {
			s.serverError(w, "http/posts", err)
			return
		}
		view.Comments = append(view.Comments, cv)
	}

	s.render(w, r, http.StatusOK, "post_detail.html", &templateData{Post: view})
}

// --- Comments ---

// commentCreateHandler adds the caller's comment to the post in the path.
// Unlike posts, an invalid comment is a 400 and the form is not shown again.
func (s *Server) commentCreateHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.clientError(w, http.StatusBadRequest)
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w)
		return
	}
	post, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		s.fail(w, "http/comments", err)
		return
	}

	comment := &models.Comment{
		Body:   r.PostForm.Get("body"),
		PostID: post.ID,
		UserID: userID,
	}
	if err := s.forum.CreateComment(r.Context(), comment); err != nil {
		s.fail(w, "http/comments", err)
		return
	}

	http.Redirect(w, r, postURL(post.ID), http.StatusFound)
}

// --- Votes ---

func (s *Server) postVoteHandler(kind models.VoteKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())
		id, ok := pathID(r, "id")
		if !ok {
			s.notFound(w)
			return
		}

		postID, err := s.forum.VoteOnPost(r.Context(), kind, userID, id)
		if err != nil {
			s.fail(w, "http/votes", err)
			return
		}
		http.Redirect(w, r, postURL(postID), http.StatusFound)
	}
}

// commentVoteHandler votes on the comment in the path and redirects to its parent post.
// A comment that does not belong to the post in the path is not found.
func (s *Server) commentVoteHandler(kind models.VoteKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())
		postID, ok := pathID(r, "id")
		if !ok {
			s.notFound(w)
			return
		}
		commentID, ok := pathID(r, "comment_id")
		if !ok {
			s.notFound(w)
			return
		}

		comment, err := s.store.GetComment(r.Context(), commentID)
		if err != nil {
			s.fail(w, "http/votes", err)
			return
		}
		if comment.PostID != postID {
			s.notFound(w)
			return
		}

		parentID, err := s.forum.VoteOnComment(r.Context(), kind, userID, comment.ID)
		if err != nil {
			s.fail(w, "http/votes", err)
			return
		}
		http.Redirect(w, r, postURL(parentID), http.StatusFound)
	}
}

// --- Feed ---

// feedHandler shows the caller's timeline as written by the feed worker.
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	entries, err := s.feed.GetFeed(r.Context(), userID, feedLimit)
	if err != nil {
		s.serverError(w, "http/feed", err)
		return
	}

	s.render(w, r, http.StatusOK, "feed.html", &templateData{Feed: entries})
}

func postURL(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10) + "/"
}
