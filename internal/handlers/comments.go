package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/middleware"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

const maxCommentLength = 500

// CommentHandler implements the comment endpoints under a video.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

// List handles GET /api/videos/{id}/comments requests, newest first.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Comments == nil || h.Videos == nil {
		logger.Error("comment dependencies unavailable", "hasComments", h.Comments != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "comment services unavailable"})
		return
	}

	videoID := r.PathValue("id")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("comment video lookup failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load comments"})
		return
	}

	comments, err := h.Comments.ListByVideo(ctx, videoID)
	if err != nil {
		logger.Error("comment listing failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load comments"})
		return
	}

	views := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"comments": views})
}

// Create handles POST /api/videos/{id}/comments requests.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Comments == nil || h.Videos == nil {
		logger.Error("comment dependencies unavailable", "hasIdentity", ok, "hasComments", h.Comments != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "comment services unavailable"})
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Comment text is required"})
		return
	}
	if utf8.RuneCountInString(req.Text) > maxCommentLength {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Comment is too long"})
		return
	}

	videoID := r.PathValue("id")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("comment video lookup failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to save comment"})
		return
	}

	comment := models.Comment{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		AuthorID:   identity.ID,
		AuthorName: identity.Username,
		Text:       req.Text,
		CreatedAt:  h.now(),
	}

	if err := h.Comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("comment create failed", "error", err, "videoId", videoID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save comment"})
		return
	}

	logger.Info("comment created", "commentId", comment.ID, "videoId", videoID, "userId", identity.ID)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Comment added successfully",
		"comment": commentView(comment),
	})
}

// Update handles PUT /api/videos/{id}/comments/{commentId} requests. Only the
// author may edit.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Comments == nil {
		logger.Error("comment dependencies unavailable", "hasIdentity", ok, "hasComments", h.Comments != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "comment services unavailable"})
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Comment text is required"})
		return
	}
	if utf8.RuneCountInString(req.Text) > maxCommentLength {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Comment is too long"})
		return
	}

	id := r.PathValue("commentId")
	comment, err := h.Comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Comment not found"})
			return
		}
		logger.Error("comment lookup failed", "error", err, "commentId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load comment"})
		return
	}

	if !ownsResource(comment.AuthorID, identity.ID) {
		logger.Warn("comment update denied", "commentId", id, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "Unauthorized to update this comment"})
		return
	}

	now := h.now()
	comment.Text = req.Text
	comment.Edited = true
	comment.EditedAt = &now

	if err := h.Comments.Update(ctx, comment); err != nil {
		logger.Error("comment update failed", "error", err, "commentId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update comment"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Comment updated successfully",
		"comment": commentView(comment),
	})
}

// Delete handles DELETE /api/videos/{id}/comments/{commentId} requests. Only
// the author may delete.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Comments == nil {
		logger.Error("comment dependencies unavailable", "hasIdentity", ok, "hasComments", h.Comments != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "comment services unavailable"})
		return
	}

	id := r.PathValue("commentId")
	comment, err := h.Comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Comment not found"})
			return
		}
		logger.Error("comment lookup failed", "error", err, "commentId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load comment"})
		return
	}

	if !ownsResource(comment.AuthorID, identity.ID) {
		logger.Warn("comment delete denied", "commentId", id, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "Unauthorized to delete this comment"})
		return
	}

	if err := h.Comments.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("comment delete failed", "error", err, "commentId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete comment"})
		return
	}

	logger.Info("comment deleted", "commentId", id, "userId", identity.ID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Comment deleted successfully"})
}

type commentRequest struct {
	Text string `json:"text"`
}

type commentResponse struct {
	ID         string     `json:"id"`
	VideoID    string     `json:"videoId"`
	AuthorID   string     `json:"userId"`
	AuthorName string     `json:"username"`
	Text       string     `json:"text"`
	Edited     bool       `json:"edited"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
}

func commentView(c models.Comment) commentResponse {
	return commentResponse{
		ID:         c.ID,
		VideoID:    c.VideoID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		Edited:     c.Edited,
		CreatedAt:  c.CreatedAt,
		EditedAt:   c.EditedAt,
	}
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
