package repositories

import (
	"context"
	"time"

	"github.com/tubestream/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error
}

// ChannelRepository defines the data access contract for channels.
type ChannelRepository interface {
	Create(ctx context.Context, channel models.Channel) error
	FindByOwner(ctx context.Context, ownerID string) (models.Channel, error)
	FindByUsername(ctx context.Context, username string) (models.Channel, error)
	FindByID(ctx context.Context, id string) (models.Channel, error)
	List(ctx context.Context) ([]models.Channel, error)
	Update(ctx context.Context, channel models.Channel) error
	Delete(ctx context.Context, id string) error
}

// VideoRepository defines the data access contract for videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	View(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter VideoListFilter) ([]models.Video, int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	ListByChannel(ctx context.Context, channelID string) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	SetMediaLocations(ctx context.Context, id, videoURL, thumbnailURL string) error
	Delete(ctx context.Context, id string) error
}

// CommentRepository defines the data access contract for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListByVideo(ctx context.Context, videoID string) ([]models.Comment, error)
	Update(ctx context.Context, comment models.Comment) error
	Delete(ctx context.Context, id string) error
}

// LikeRepository records per-user video reactions.
type LikeRepository interface {
	React(ctx context.Context, userID, videoID, kind string) (likes, dislikes int64, err error)
}
