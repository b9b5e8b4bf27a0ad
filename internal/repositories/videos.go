package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubestream/backend/internal/db"
	"github.com/tubestream/backend/internal/models"
)

const videoColumns = `id, title, description, video_url, thumbnail_url, views, likes, dislikes,
        category, visibility, tags, upload_method, owner_user_id, channel_id, channel_name,
        is_sample, comment_count, uploaded_at`

// VideoListFilter narrows the public video listing.
type VideoListFilter struct {
	Category string
	Search   string
	Limit    int
	Page     int
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, title, description, video_url, thumbnail_url, views, likes, dislikes,
                category, visibility, tags, upload_method, owner_user_id, channel_id, channel_name,
                is_sample, comment_count, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    `, video.ID, video.Title, video.Description, video.VideoURL, video.ThumbnailURL,
		video.Views, video.Likes, video.Dislikes, video.Category, video.Visibility,
		joinTags(video.Tags), video.UploadMethod, nullable(video.OwnerID), nullable(video.ChannelID),
		video.ChannelName, video.IsSample, video.CommentCount, video.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, err
	}

	return video, nil
}

// View atomically increments the view counter and returns the updated video.
// The increment happens in storage so concurrent views are never lost.
func (r *PostgresVideoRepository) View(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `
        UPDATE videos
        SET views = views + 1
        WHERE id = $1
        RETURNING `+videoColumns, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, err
	}

	return video, nil
}

// List returns public and sample videos, newest first, honoring the filter.
func (r *PostgresVideoRepository) List(ctx context.Context, filter VideoListFilter) ([]models.Video, int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where := []string{`(is_sample OR visibility = 'public')`}
	args := []any{}

	if filter.Category != "" && filter.Category != "All" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf(`category = $%d`, len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf(`(title ILIKE $%d OR description ILIKE $%d)`, len(args), len(args)))
	}

	clause := strings.Join(where, " AND ")

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE %s ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d`,
		videoColumns, clause, len(args)-1, len(args))

	videos, err := r.queryVideos(ctx, conn, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

// ListByOwner returns a user's videos, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return r.queryVideos(ctx, conn,
		`SELECT `+videoColumns+` FROM videos WHERE owner_user_id = $1 ORDER BY uploaded_at DESC`, ownerID)
}

// ListByChannel returns a channel's videos, newest first.
func (r *PostgresVideoRepository) ListByChannel(ctx context.Context, channelID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return r.queryVideos(ctx, conn,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = $1 ORDER BY uploaded_at DESC`, channelID)
}

// Update modifies the owner-editable fields of a video.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, category = $4, tags = $5, visibility = $6
        WHERE id = $1
    `, video.ID, video.Title, video.Description, video.Category, joinTags(video.Tags), video.Visibility)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetMediaLocations repoints a video's media at new storage locations. Used
// after uploaded files are offloaded to the object store.
func (r *PostgresVideoRepository) SetMediaLocations(ctx context.Context, id, videoURL, thumbnailURL string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET video_url = $2, thumbnail_url = $3
        WHERE id = $1
    `, id, videoURL, thumbnailURL)
	if err != nil {
		return fmt.Errorf("update video media locations: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a video record.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresVideoRepository) queryVideos(ctx context.Context, conn *pgxpool.Conn, query string, args ...any) ([]models.Video, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video     models.Video
		tags      string
		ownerID   *string
		channelID *string
	)

	if err := row.Scan(&video.ID, &video.Title, &video.Description, &video.VideoURL, &video.ThumbnailURL,
		&video.Views, &video.Likes, &video.Dislikes, &video.Category, &video.Visibility, &tags,
		&video.UploadMethod, &ownerID, &channelID, &video.ChannelName, &video.IsSample,
		&video.CommentCount, &video.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, err
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}

	video.Tags = splitTags(tags)
	if ownerID != nil {
		video.OwnerID = *ownerID
	}
	if channelID != nil {
		video.ChannelID = *channelID
	}

	return video, nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
