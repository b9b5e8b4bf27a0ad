package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubestream/backend/internal/db"
	"github.com/tubestream/backend/internal/models"
)

// PostgresLikeRepository records one reaction per (user, video) pair and keeps
// the denormalized like/dislike counters on videos in step with atomic
// increments.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// React records the user's reaction to a video and returns the updated
// counters. Repeating the same reaction is a no-op; switching kinds moves one
// count from the old column to the new one.
func (r *PostgresLikeRepository) React(ctx context.Context, userID, videoID, kind string) (likes, dislikes int64, err error) {
	if kind != models.ReactionLike && kind != models.ReactionDislike {
		return 0, 0, fmt.Errorf("unknown reaction kind %q", kind)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var existing string
	err = conn.QueryRow(ctx, `
        SELECT kind FROM likes WHERE user_id = $1 AND video_id = $2
    `, userID, videoID).Scan(&existing)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := conn.Exec(ctx, `
            INSERT INTO likes (user_id, video_id, kind, created_at)
            VALUES ($1, $2, $3, $4)
        `, userID, videoID, kind, time.Now().UTC()); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case "23505":
					// Concurrent insert won the race; leave the counters alone.
					return r.currentCounts(ctx, conn, videoID)
				case "23503":
					return 0, 0, ErrNotFound
				}
			}
			return 0, 0, fmt.Errorf("insert reaction: %w", err)
		}
		return r.bumpCounts(ctx, conn, videoID, kind, "")
	case err != nil:
		return 0, 0, fmt.Errorf("select reaction: %w", err)
	case existing == kind:
		return r.currentCounts(ctx, conn, videoID)
	default:
		if _, err := conn.Exec(ctx, `
            UPDATE likes SET kind = $3 WHERE user_id = $1 AND video_id = $2
        `, userID, videoID, kind); err != nil {
			return 0, 0, fmt.Errorf("update reaction: %w", err)
		}
		return r.bumpCounts(ctx, conn, videoID, kind, existing)
	}
}

func (r *PostgresLikeRepository) bumpCounts(ctx context.Context, conn *pgxpool.Conn, videoID, added, removed string) (int64, int64, error) {
	likesDelta := delta(added, models.ReactionLike) - delta(removed, models.ReactionLike)
	dislikesDelta := delta(added, models.ReactionDislike) - delta(removed, models.ReactionDislike)

	var likes, dislikes int64
	err := conn.QueryRow(ctx, `
        UPDATE videos
        SET likes = likes + $2, dislikes = dislikes + $3
        WHERE id = $1
        RETURNING likes, dislikes
    `, videoID, likesDelta, dislikesDelta).Scan(&likes, &dislikes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("adjust reaction counters: %w", err)
	}

	return likes, dislikes, nil
}

func (r *PostgresLikeRepository) currentCounts(ctx context.Context, conn *pgxpool.Conn, videoID string) (int64, int64, error) {
	var likes, dislikes int64
	err := conn.QueryRow(ctx, `SELECT likes, dislikes FROM videos WHERE id = $1`, videoID).Scan(&likes, &dislikes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("select reaction counters: %w", err)
	}
	return likes, dislikes, nil
}

func delta(kind, want string) int64 {
	if kind == want {
		return 1
	}
	return 0
}

var _ LikeRepository = (*PostgresLikeRepository)(nil)
