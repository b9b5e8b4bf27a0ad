package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tubestream/backend/internal/db"
	"github.com/tubestream/backend/internal/models"
)

const commentColumns = `id, video_id, author_user_id, author_name, text, edited, created_at, edited_at`

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
//
// Comments live in their own table referencing videos; the write path keeps
// the denormalized comment_count on videos in step.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create persists a new comment and bumps the video's comment count.
// The two statements are sequential, not transactional; a crash between them
// leaves the count off by one.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, video_id, author_user_id, author_name, text, edited, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, comment.ID, comment.VideoID, comment.AuthorID, comment.AuthorName, comment.Text, comment.Edited, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	if _, err := conn.Exec(ctx, `
        UPDATE videos SET comment_count = comment_count + 1 WHERE id = $1
    `, comment.VideoID); err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}

	return nil
}

// FindByID fetches a single comment.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)

	comment, err := scanComment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, err
	}

	return comment, nil
}

// ListByVideo returns a video's comments, newest first.
func (r *PostgresCommentRepository) ListByVideo(ctx context.Context, videoID string) ([]models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+commentColumns+`
        FROM comments
        WHERE video_id = $1
        ORDER BY created_at DESC
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// Update replaces a comment's text and marks it edited.
func (r *PostgresCommentRepository) Update(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE comments
        SET text = $2, edited = TRUE, edited_at = $3
        WHERE id = $1
    `, comment.ID, comment.Text, comment.EditedAt)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a comment and decrements the video's comment count.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `DELETE FROM comments WHERE id = $1 RETURNING video_id`, id)

	var videoID string
	if err := row.Scan(&videoID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	if _, err := conn.Exec(ctx, `
        UPDATE videos SET comment_count = GREATEST(comment_count - 1, 0) WHERE id = $1
    `, videoID); err != nil {
		return fmt.Errorf("decrement comment count: %w", err)
	}

	return nil
}

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	if err := row.Scan(&comment.ID, &comment.VideoID, &comment.AuthorID, &comment.AuthorName,
		&comment.Text, &comment.Edited, &comment.CreatedAt, &comment.EditedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, err
		}
		return models.Comment{}, fmt.Errorf("scan comment: %w", err)
	}
	return comment, nil
}

var _ CommentRepository = (*PostgresCommentRepository)(nil)
