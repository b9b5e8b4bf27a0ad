package handlers

import (
	"net/http"
	"time"

	"github.com/tubestream/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Channels  ChannelStore
	Videos    VideoStore
	Comments  CommentStore
	Likes     LikeStore
	Tokens    TokenService
	Verifier  middleware.TokenVerifier
	Uploader  VideoUploader
	Offloader MediaOffloader
	Limiter   RateLimiter

	// MediaRoot serves staged uploads from local disk when non-empty.
	MediaRoot string

	NowFunc func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Limiter: deps.Limiter, NowFunc: deps.NowFunc}
	channels := ChannelHandler{Channels: deps.Channels, Videos: deps.Videos, NowFunc: deps.NowFunc}
	videos := VideoHandler{
		Videos:    deps.Videos,
		Channels:  deps.Channels,
		Likes:     deps.Likes,
		Uploader:  deps.Uploader,
		Offloader: deps.Offloader,
		NowFunc:   deps.NowFunc,
	}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, NowFunc: deps.NowFunc}

	required := middleware.RequireAuth(deps.Verifier, deps.Users)
	optional := middleware.OptionalAuth(deps.Verifier, deps.Users)

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/users/register", authH.Register)
	mux.HandleFunc("POST /api/users/login", authH.Login)
	mux.HandleFunc("POST /api/users/forgot-password", authH.ForgotPassword)
	mux.HandleFunc("PUT /api/users/reset-password", authH.ResetPassword)

	mux.Handle("POST /api/channels", required(http.HandlerFunc(channels.Create)))
	mux.HandleFunc("GET /api/channels", channels.List)
	mux.Handle("GET /api/channels/my", required(http.HandlerFunc(channels.Mine)))
	mux.Handle("PUT /api/channels/my", required(http.HandlerFunc(channels.Update)))
	mux.Handle("DELETE /api/channels/my", required(http.HandlerFunc(channels.Delete)))
	mux.HandleFunc("GET /api/channels/{username}", channels.ByUsername)

	mux.Handle("POST /api/videos/upload", required(http.HandlerFunc(videos.Upload)))
	mux.Handle("GET /api/videos", optional(http.HandlerFunc(videos.List)))
	mux.Handle("GET /api/videos/me", required(http.HandlerFunc(videos.Mine)))
	mux.HandleFunc("GET /api/videos/user/{userId}", videos.ByUser)
	mux.HandleFunc("GET /api/videos/channel/{channelId}", videos.ByChannel)
	mux.Handle("GET /api/videos/{id}", optional(http.HandlerFunc(videos.Get)))
	mux.Handle("PUT /api/videos/{id}", required(http.HandlerFunc(videos.Update)))
	mux.Handle("DELETE /api/videos/{id}", required(http.HandlerFunc(videos.Delete)))
	mux.Handle("POST /api/videos/{id}/like", required(http.HandlerFunc(videos.Like)))
	mux.Handle("POST /api/videos/{id}/dislike", required(http.HandlerFunc(videos.Dislike)))

	mux.HandleFunc("GET /api/videos/{id}/comments", comments.List)
	mux.Handle("POST /api/videos/{id}/comments", required(http.HandlerFunc(comments.Create)))
	mux.Handle("PUT /api/videos/{id}/comments/{commentId}", required(http.HandlerFunc(comments.Update)))
	mux.Handle("DELETE /api/videos/{id}/comments/{commentId}", required(http.HandlerFunc(comments.Delete)))

	if deps.MediaRoot != "" {
		fs := http.FileServer(http.Dir(deps.MediaRoot))
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", fs))
	}
}
