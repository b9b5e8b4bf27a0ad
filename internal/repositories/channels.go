package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tubestream/backend/internal/db"
	"github.com/tubestream/backend/internal/models"
)

const channelColumns = `id, name, username, description, banner, avatar, owner_user_id, subscribers, created_at, updated_at`

// Channel uniqueness failures, distinguished by constraint so handlers can
// report which field collided.
var (
	// ErrOwnerHasChannel indicates the user already owns a channel.
	ErrOwnerHasChannel = errors.New("owner already has a channel")
	// ErrUsernameTaken indicates the channel username is already in use.
	ErrUsernameTaken = errors.New("channel username taken")
)

// PostgresChannelRepository provides PostgreSQL-backed persistence for channels.
type PostgresChannelRepository struct {
	pool db.Pool
}

// NewPostgresChannelRepository constructs a channel repository backed by PostgreSQL.
func NewPostgresChannelRepository(pool db.Pool) *PostgresChannelRepository {
	return &PostgresChannelRepository{pool: pool}
}

// Create persists a new channel. The one-channel-per-owner and unique-username
// invariants are enforced by storage-level constraints, not application locks,
// so concurrent creates settle here.
func (r *PostgresChannelRepository) Create(ctx context.Context, channel models.Channel) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO channels (id, name, username, description, banner, avatar, owner_user_id, subscribers, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, channel.ID, channel.Name, channel.Username, channel.Description, channel.Banner,
		channel.Avatar, channel.OwnerID, channel.Subscribers, channel.CreatedAt, channel.UpdatedAt)
	if err != nil {
		return mapChannelConflict(err, "insert channel")
	}

	return nil
}

// FindByOwner fetches the channel owned by the given user.
func (r *PostgresChannelRepository) FindByOwner(ctx context.Context, ownerID string) (models.Channel, error) {
	return r.findOne(ctx, `SELECT `+channelColumns+` FROM channels WHERE owner_user_id = $1`, ownerID)
}

// FindByUsername fetches a channel by its public username.
func (r *PostgresChannelRepository) FindByUsername(ctx context.Context, username string) (models.Channel, error) {
	return r.findOne(ctx, `SELECT `+channelColumns+` FROM channels WHERE username = $1`, username)
}

// FindByID fetches a channel by its primary identifier.
func (r *PostgresChannelRepository) FindByID(ctx context.Context, id string) (models.Channel, error) {
	return r.findOne(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
}

// List returns every channel, newest first.
func (r *PostgresChannelRepository) List(ctx context.Context) ([]models.Channel, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}

// Update modifies an existing channel record.
func (r *PostgresChannelRepository) Update(ctx context.Context, channel models.Channel) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE channels
        SET name = $2, username = $3, description = $4, banner = $5, avatar = $6, updated_at = $7
        WHERE id = $1
    `, channel.ID, channel.Name, channel.Username, channel.Description, channel.Banner, channel.Avatar, channel.UpdatedAt)
	if err != nil {
		return mapChannelConflict(err, "update channel")
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a channel. Its videos are deleted separately by the caller
// as best-effort sequential statements; the cascade is not transactional.
func (r *PostgresChannelRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresChannelRepository) findOne(ctx context.Context, query string, args ...any) (models.Channel, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Channel{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	channel, err := scanChannel(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Channel{}, ErrNotFound
		}
		return models.Channel{}, err
	}

	return channel, nil
}

func scanChannel(row pgx.Row) (models.Channel, error) {
	var channel models.Channel
	if err := row.Scan(&channel.ID, &channel.Name, &channel.Username, &channel.Description,
		&channel.Banner, &channel.Avatar, &channel.OwnerID, &channel.Subscribers,
		&channel.CreatedAt, &channel.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Channel{}, err
		}
		return models.Channel{}, fmt.Errorf("scan channel: %w", err)
	}
	return channel, nil
}

func mapChannelConflict(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "channels_owner_user_id_key":
			return ErrOwnerHasChannel
		case "channels_username_key":
			return ErrUsernameTaken
		}
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ ChannelRepository = (*PostgresChannelRepository)(nil)
