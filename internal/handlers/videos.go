package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/media"
	"github.com/tubestream/backend/internal/middleware"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
	"github.com/tubestream/backend/internal/uploads"
)

// VideoUploader validates and stages multipart video uploads.
type VideoUploader interface {
	Process(r *http.Request) (uploads.Result, error)
	Discard(r *http.Request, result uploads.Result)
}

// VideoHandler implements the video catalog endpoints.
type VideoHandler struct {
	Videos    VideoStore
	Channels  ChannelStore
	Likes     LikeStore
	Uploader  VideoUploader
	Offloader MediaOffloader
	NowFunc   func() time.Time
}

// Upload handles POST /api/videos/upload requests. The uploader must already
// own a channel; the video is published under it.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Videos == nil || h.Channels == nil || h.Uploader == nil {
		logger.Error("video upload dependencies unavailable", "hasIdentity", ok,
			"hasVideos", h.Videos != nil, "hasChannels", h.Channels != nil, "hasUploader", h.Uploader != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	channel, err := h.Channels.FindByOwner(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "You must create a channel before uploading videos"})
			return
		}
		logger.Error("upload channel lookup failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify channel"})
		return
	}

	result, err := h.Uploader.Process(r)
	if err != nil {
		var reqErr *uploads.RequestError
		if errors.As(err, &reqErr) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": reqErr.Error()})
			return
		}
		logger.Error("upload processing failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	form := uploadForm{
		Title:        strings.TrimSpace(result.Fields.Get("title")),
		Description:  strings.TrimSpace(result.Fields.Get("description")),
		Category:     strings.TrimSpace(result.Fields.Get("category")),
		Visibility:   strings.TrimSpace(result.Fields.Get("visibility")),
		Tags:         result.Fields.Get("tags"),
		UploadMethod: strings.TrimSpace(result.Fields.Get("uploadMethod")),
		VideoURL:     strings.TrimSpace(result.Fields.Get("videoUrl")),
	}
	if form.UploadMethod == "" {
		form.UploadMethod = models.UploadMethodFile
	}
	if form.Visibility == "" {
		form.Visibility = models.VisibilityPublic
	}

	errs := fieldErrors{}
	if form.Title == "" {
		errs.add("title", "Title is required")
	}
	if !models.ValidCategory(form.Category) {
		errs.add("category", "Category is not supported")
	}
	if !models.ValidVisibility(form.Visibility) {
		errs.add("visibility", "Visibility must be public, unlisted or private")
	}
	switch form.UploadMethod {
	case models.UploadMethodFile:
		if result.Video == nil {
			errs.add("video", "A video file is required")
		}
	case models.UploadMethodURL:
		if form.VideoURL == "" {
			errs.add("videoUrl", "A video URL is required")
		}
	default:
		errs.add("uploadMethod", "Upload method must be file or url")
	}
	if errs.respond(ctx, w) {
		h.Uploader.Discard(r, result)
		return
	}

	videoURL := form.VideoURL
	if result.Video != nil {
		videoURL = result.Video.Location
	}
	thumbnailURL := ""
	if result.Thumbnail != nil {
		thumbnailURL = result.Thumbnail.Location
	}

	video := models.Video{
		ID:           uuid.NewString(),
		Title:        form.Title,
		Description:  form.Description,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		Category:     form.Category,
		Visibility:   form.Visibility,
		Tags:         splitTags(form.Tags),
		UploadMethod: form.UploadMethod,
		OwnerID:      identity.ID,
		ChannelID:    channel.ID,
		ChannelName:  channel.Name,
		UploadedAt:   h.now(),
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("video create failed", "error", err, "userId", identity.ID)
		h.Uploader.Discard(r, result)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save video"})
		return
	}

	if h.Offloader != nil && result.Video != nil {
		job := media.Job{VideoID: video.ID, VideoName: result.Video.Name}
		if result.Thumbnail != nil {
			job.ThumbnailName = result.Thumbnail.Name
		}
		if err := h.Offloader.Enqueue(ctx, job); err != nil {
			// The record keeps serving the staged local copies.
			logger.Warn("media offload not scheduled", "error", err, "videoId", video.ID)
		}
	}

	logger.Info("video uploaded", "videoId", video.ID, "userId", identity.ID, "method", form.UploadMethod)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Video uploaded successfully",
		"video":   videoView(video, true),
	})
}

// List handles GET /api/videos requests. Only public and sample videos are
// listed; category, search, page and limit arrive as query parameters.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	query := r.URL.Query()
	filter := repositories.VideoListFilter{
		Category: strings.TrimSpace(query.Get("category")),
		Search:   strings.TrimSpace(query.Get("search")),
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Category is not supported"})
		return
	}

	videos, total, err := h.Videos.List(ctx, filter)
	if err != nil {
		logger.Error("video listing failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	identity, hasIdentity := middleware.IdentityFromContext(ctx)
	views := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		views = append(views, videoView(v, hasIdentity && ownsResource(v.OwnerID, identity.ID)))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"videos": views,
		"total":  total,
	})
}

// Mine handles GET /api/videos/me requests, listing the caller's uploads
// regardless of visibility.
func (h VideoHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Videos == nil {
		logger.Error("video dependencies unavailable", "hasIdentity", ok, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	videos, err := h.Videos.ListByOwner(ctx, identity.ID)
	if err != nil {
		logger.Error("video listing failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	views := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		views = append(views, videoView(v, true))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": views})
}

// ByUser handles GET /api/videos/user/{userId} requests. Unlisted and private
// uploads are omitted because anyone can call this.
func (h VideoHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	userID := r.PathValue("userId")
	videos, err := h.Videos.ListByOwner(ctx, userID)
	if err != nil {
		logger.Error("video listing failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": publicViews(videos)})
}

// ByChannel handles GET /api/videos/channel/{channelId} requests.
func (h VideoHandler) ByChannel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	channelID := r.PathValue("channelId")
	videos, err := h.Videos.ListByChannel(ctx, channelID)
	if err != nil {
		logger.Error("video listing failed", "error", err, "channelId", channelID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": publicViews(videos)})
}

func publicViews(videos []models.Video) []videoResponse {
	views := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		if v.Visibility != models.VisibilityPublic {
			continue
		}
		views = append(views, videoView(v, false))
	}
	return views
}

// Get handles GET /api/videos/{id} requests. Successful reads count a view.
// Private videos stay hidden from everyone but their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	id := r.PathValue("id")
	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}

	identity, _ := middleware.IdentityFromContext(ctx)
	isOwner := ownsResource(video.OwnerID, identity.ID)

	if video.Visibility == models.VisibilityPrivate && !isOwner {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
		return
	}

	video, err = h.Videos.View(ctx, id)
	if err != nil {
		logger.Error("view count update failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"video": videoView(video, isOwner)})
}

// Update handles PUT /api/videos/{id} requests.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Videos == nil {
		logger.Error("video dependencies unavailable", "hasIdentity", ok, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	var req videoUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id := r.PathValue("id")
	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}

	if !ownsResource(video.OwnerID, identity.ID) {
		logger.Warn("video update denied", "videoId", id, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "Unauthorized to update this video"})
		return
	}

	if title := strings.TrimSpace(req.Title); title != "" {
		video.Title = title
	}
	if req.Description != nil {
		video.Description = strings.TrimSpace(*req.Description)
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		if !models.ValidCategory(category) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Category is not supported"})
			return
		}
		video.Category = category
	}
	if visibility := strings.TrimSpace(req.Visibility); visibility != "" {
		if !models.ValidVisibility(visibility) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Visibility must be public, unlisted or private"})
			return
		}
		video.Visibility = visibility
	}
	if req.Tags != nil {
		video.Tags = splitTags(*req.Tags)
	}

	if err := h.Videos.Update(ctx, video); err != nil {
		logger.Error("video update failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update video"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Video updated successfully",
		"video":   videoView(video, true),
	})
}

// Delete handles DELETE /api/videos/{id} requests.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Videos == nil {
		logger.Error("video dependencies unavailable", "hasIdentity", ok, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	id := r.PathValue("id")
	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("video lookup failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load video"})
		return
	}

	if !ownsResource(video.OwnerID, identity.ID) {
		logger.Warn("video delete denied", "videoId", id, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "Unauthorized to delete this video"})
		return
	}

	if err := h.Videos.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("video delete failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	logger.Info("video deleted", "videoId", id, "userId", identity.ID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Video deleted successfully"})
}

// Like handles POST /api/videos/{id}/like requests.
func (h VideoHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, models.ReactionLike)
}

// Dislike handles POST /api/videos/{id}/dislike requests.
func (h VideoHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.react(w, r, models.ReactionDislike)
}

func (h VideoHandler) react(w http.ResponseWriter, r *http.Request, kind string) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Likes == nil {
		logger.Error("reaction dependencies unavailable", "hasIdentity", ok, "hasLikes", h.Likes != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video services unavailable"})
		return
	}

	id := r.PathValue("id")
	likes, dislikes, err := h.Likes.React(ctx, identity.ID, id, kind)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Video not found"})
			return
		}
		logger.Error("reaction failed", "error", err, "videoId", id, "kind", kind)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to record reaction"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]int64{
		"likes":    likes,
		"dislikes": dislikes,
	})
}

type uploadForm struct {
	Title        string
	Description  string
	Category     string
	Visibility   string
	Tags         string
	UploadMethod string
	VideoURL     string
}

type videoUpdateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	Visibility  string  `json:"visibility"`
	Tags        *string `json:"tags"`
}

type videoResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	Dislikes     int64     `json:"dislikes"`
	Category     string    `json:"category"`
	Visibility   string    `json:"visibility"`
	Tags         []string  `json:"tags"`
	UploadMethod string    `json:"uploadMethod"`
	OwnerID      string    `json:"userId,omitempty"`
	ChannelID    string    `json:"channelId,omitempty"`
	ChannelName  string    `json:"channelName,omitempty"`
	IsSample     bool      `json:"isSample"`
	CommentCount int64     `json:"commentCount"`
	UploadedAt   time.Time `json:"uploadDate"`
	IsOwner      bool      `json:"isOwner"`
}

func videoView(v models.Video, isOwner bool) videoResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return videoResponse{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		Views:        v.Views,
		Likes:        v.Likes,
		Dislikes:     v.Dislikes,
		Category:     v.Category,
		Visibility:   v.Visibility,
		Tags:         tags,
		UploadMethod: v.UploadMethod,
		OwnerID:      v.OwnerID,
		ChannelID:    v.ChannelID,
		ChannelName:  v.ChannelName,
		IsSample:     v.IsSample,
		CommentCount: v.CommentCount,
		UploadedAt:   v.UploadedAt,
		IsOwner:      isOwner,
	}
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
