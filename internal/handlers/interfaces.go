package handlers

import (
	"context"
	"time"

	"github.com/tubestream/backend/internal/media"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error
}

// TokenService issues and verifies the bearer and reset tokens used by the API.
type TokenService interface {
	Issue(userID, username string) (string, error)
	IssueReset(userID string) (string, error)
	VerifyReset(token string) (string, error)
}

// ChannelStore captures persistence for channel workflows.
type ChannelStore interface {
	Create(ctx context.Context, channel models.Channel) error
	FindByOwner(ctx context.Context, ownerID string) (models.Channel, error)
	FindByUsername(ctx context.Context, username string) (models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Update(ctx context.Context, channel models.Channel) error
	Delete(ctx context.Context, id string) error
}

// VideoStore captures persistence for video workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	View(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter repositories.VideoListFilter) ([]models.Video, int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	ListByChannel(ctx context.Context, channelID string) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
}

// CommentStore captures persistence for comment workflows.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListByVideo(ctx context.Context, videoID string) ([]models.Comment, error)
	Update(ctx context.Context, comment models.Comment) error
	Delete(ctx context.Context, id string) error
}

// LikeStore records per-user reactions and returns the updated counters.
type LikeStore interface {
	React(ctx context.Context, userID, videoID, kind string) (likes, dislikes int64, err error)
}

// MediaOffloader schedules background transfer of staged uploads to an
// object store. Nil when the deployment serves media from local disk only.
type MediaOffloader interface {
	Enqueue(ctx context.Context, job media.Job) error
}
