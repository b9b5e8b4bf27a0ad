package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/middleware"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

// ChannelHandler implements channel management endpoints. Each user owns at
// most one channel; deleting it also removes the videos published under it.
type ChannelHandler struct {
	Channels ChannelStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

var channelUsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// Create handles POST /api/channels requests.
func (h ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Channels == nil {
		logger.Error("channel dependencies unavailable", "hasIdentity", ok, "hasChannels", h.Channels != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid channel payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.normalize()
	errs := fieldErrors{}
	if req.Name == "" {
		errs.add("name", "Channel name is required")
	} else if n := utf8.RuneCountInString(req.Name); n < 3 || n > 50 {
		errs.add("name", "Channel name must be between 3 and 50 characters")
	}
	if req.Username == "" {
		errs.add("username", "Channel username is required")
	} else if !channelUsernamePattern.MatchString(req.Username) {
		errs.add("username", "Channel username may only contain letters, numbers and underscores")
	}
	if utf8.RuneCountInString(req.Description) > 1000 {
		errs.add("description", "Description must be at most 1000 characters")
	}
	if errs.respond(ctx, w) {
		return
	}

	if existing, err := h.Channels.FindByOwner(ctx, identity.ID); err == nil {
		logger.Warn("channel already exists for owner", "userId", identity.ID, "channelId", existing.ID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]any{
			"error":   "You already have a channel",
			"channel": channelView(existing),
		})
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("channel owner lookup failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify existing channels"})
		return
	}

	if req.Avatar == "" {
		req.Avatar = models.AvatarGlyph(req.Name)
	}

	now := h.now()
	channel := models.Channel{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Username:    req.Username,
		Description: req.Description,
		Banner:      req.Banner,
		Avatar:      req.Avatar,
		OwnerID:     identity.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Channels.Create(ctx, channel); err != nil {
		switch {
		case errors.Is(err, repositories.ErrOwnerHasChannel):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "You already have a channel"})
		case errors.Is(err, repositories.ErrUsernameTaken):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Channel username already in use"})
		default:
			logger.Error("channel create failed", "error", err, "userId", identity.ID)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create channel"})
		}
		return
	}

	logger.Info("channel created", "channelId", channel.ID, "userId", identity.ID)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "Channel created successfully",
		"channel": channelView(channel),
	})
}

// Mine handles GET /api/channels/my requests, returning the caller's channel
// together with everything published under it.
func (h ChannelHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Channels == nil || h.Videos == nil {
		logger.Error("channel dependencies unavailable", "hasIdentity", ok, "hasChannels", h.Channels != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	channel, err := h.Channels.FindByOwner(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Channel not found"})
			return
		}
		logger.Error("channel lookup failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel"})
		return
	}

	videos, err := h.Videos.ListByChannel(ctx, channel.ID)
	if err != nil {
		logger.Error("channel video listing failed", "error", err, "channelId", channel.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel videos"})
		return
	}

	views := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		views = append(views, videoView(v, true))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"channel": channelView(channel),
		"videos":  views,
	})
}

// Update handles PUT /api/channels/my requests.
func (h ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Channels == nil {
		logger.Error("channel dependencies unavailable", "hasIdentity", ok, "hasChannels", h.Channels != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid channel payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.normalize()

	channel, err := h.Channels.FindByOwner(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Channel not found"})
			return
		}
		logger.Error("channel lookup failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel"})
		return
	}

	// Only the fields present in the payload change. The channel username is
	// immutable once chosen.
	if req.Name != "" {
		channel.Name = req.Name
	}
	if req.Description != "" {
		channel.Description = req.Description
	}
	if req.Banner != "" {
		channel.Banner = req.Banner
	}
	if req.Avatar != "" {
		channel.Avatar = req.Avatar
	}
	if channel.Avatar == "" {
		channel.Avatar = models.AvatarGlyph(channel.Name)
	}
	channel.UpdatedAt = h.now()

	if err := h.Channels.Update(ctx, channel); err != nil {
		logger.Error("channel update failed", "error", err, "channelId", channel.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update channel"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "Channel updated successfully",
		"channel": channelView(channel),
	})
}

// Delete handles DELETE /api/channels/my requests. The channel's videos are
// removed first so no orphaned records keep serving.
func (h ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || h.Channels == nil || h.Videos == nil {
		logger.Error("channel dependencies unavailable", "hasIdentity", ok, "hasChannels", h.Channels != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	channel, err := h.Channels.FindByOwner(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Channel not found"})
			return
		}
		logger.Error("channel lookup failed", "error", err, "userId", identity.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel"})
		return
	}

	videos, err := h.Videos.ListByChannel(ctx, channel.ID)
	if err != nil {
		logger.Error("channel video listing failed", "error", err, "channelId", channel.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to delete channel"})
		return
	}
	for _, video := range videos {
		if err := h.Videos.Delete(ctx, video.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("channel video delete failed", "error", err, "videoId", video.ID)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to delete channel"})
			return
		}
	}

	if err := h.Channels.Delete(ctx, channel.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("channel delete failed", "error", err, "channelId", channel.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete channel"})
		return
	}

	logger.Info("channel deleted", "channelId", channel.ID, "videos", len(videos))
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Channel deleted successfully"})
}

// List handles GET /api/channels requests.
func (h ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Channels == nil {
		logger.Error("channel store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	channels, err := h.Channels.List(ctx)
	if err != nil {
		logger.Error("channel listing failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list channels"})
		return
	}

	views := make([]channelResponse, 0, len(channels))
	for _, c := range channels {
		views = append(views, channelView(c))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"channels": views})
}

// ByUsername handles GET /api/channels/{username} requests, the public
// channel page. The response bundles the channel's videos.
func (h ChannelHandler) ByUsername(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Channels == nil || h.Videos == nil {
		logger.Error("channel dependencies unavailable", "hasChannels", h.Channels != nil, "hasVideos", h.Videos != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "channel services unavailable"})
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Channel username is required"})
		return
	}

	channel, err := h.Channels.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Channel not found"})
			return
		}
		logger.Error("channel lookup failed", "error", err, "channelUsername", username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel"})
		return
	}

	videos, err := h.Videos.ListByChannel(ctx, channel.ID)
	if err != nil {
		logger.Error("channel video listing failed", "error", err, "channelId", channel.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load channel videos"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"channel": channelView(channel),
		"videos":  publicViews(videos),
	})
}

type channelRequest struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Banner      string `json:"banner"`
	Avatar      string `json:"avatar"`
}

func (req *channelRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Description = strings.TrimSpace(req.Description)
	req.Banner = strings.TrimSpace(req.Banner)
	req.Avatar = strings.TrimSpace(req.Avatar)
}

type channelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	Description string    `json:"description"`
	Banner      string    `json:"banner"`
	Avatar      string    `json:"avatar"`
	OwnerID     string    `json:"ownerId"`
	Subscribers int64     `json:"subscribers"`
	CreatedAt   time.Time `json:"createdAt"`
}

func channelView(c models.Channel) channelResponse {
	return channelResponse{
		ID:          c.ID,
		Name:        c.Name,
		Username:    c.Username,
		Description: c.Description,
		Banner:      c.Banner,
		Avatar:      c.Avatar,
		OwnerID:     c.OwnerID,
		Subscribers: c.Subscribers,
		CreatedAt:   c.CreatedAt,
	}
}

func (h ChannelHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
