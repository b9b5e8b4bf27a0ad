package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tubestream/backend/internal/auth"
	"github.com/tubestream/backend/internal/config"
	"github.com/tubestream/backend/internal/db"
	"github.com/tubestream/backend/internal/handlers"
	"github.com/tubestream/backend/internal/media"
	"github.com/tubestream/backend/internal/middleware"
	"github.com/tubestream/backend/internal/repositories"
	"github.com/tubestream/backend/internal/storage"
	"github.com/tubestream/backend/internal/uploads"
)

// localMediaPrefix is the URL path staged uploads are served under.
const localMediaPrefix = "/uploads"

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the background media offloader, if
// one was configured.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	channels := repositories.NewPostgresChannelRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	comments := repositories.NewPostgresCommentRepository(pool)
	likes := repositories.NewPostgresLikeRepository(pool)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.ResetTokenTTL)

	local := storage.NewLocalStorage(cfg.UploadDir, localMediaPrefix)
	uploader := uploads.NewValidator(local, cfg.MaxUploadSize)

	deps := handlers.Dependencies{
		Users:     users,
		Channels:  channels,
		Videos:    videos,
		Comments:  comments,
		Likes:     likes,
		Tokens:    issuer,
		Verifier:  issuer,
		Uploader:  uploader,
		Limiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		MediaRoot: local.Root(),
	}

	cleanup := func(context.Context) error { return nil }

	if cfg.ObjectStore.Enabled() {
		remote, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
		}
		offloader := media.NewOffloader(local, remote, videos, media.OffloaderConfig{}, logger)
		deps.Offloader = offloader
		cleanup = offloader.Shutdown
	}

	return deps, cleanup, nil
}
