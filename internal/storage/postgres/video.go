package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

const videoColumns = `id, title, description, filename, original_name, file_key, size,
	duration, status, error, thumbnail_key, created_at, updated_at`

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner, extra ...any) (*models.Video, error) {
	var v models.Video
	dest := []any{
		&v.ID, &v.Title, &v.Description, &v.Filename, &v.OriginalName, &v.FileKey, &v.Size,
		&v.Duration, &v.Status, &v.Error, &v.ThumbnailKey, &v.CreatedAt, &v.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VideoRepository) CreateVideo(ctx context.Context, video *models.Video) error {
	const query = `
		INSERT INTO videos (id, title, description, filename, original_name, file_key, size, duration, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if video.Status == "" {
		video.Status = models.StatusProcessing
	}

	err := r.db.QueryRowContext(ctx, query,
		video.ID,
		video.Title,
		video.Description,
		video.Filename,
		video.OriginalName,
		video.FileKey,
		video.Size,
		video.Duration,
		video.Status,
	).Scan(&video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.Validation("video %s already exists", video.ID)
		}
		return &apperr.PersistenceError{Op: "insert video", Err: err}
	}
	return nil
}

func (r *VideoRepository) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	video, err := scanVideo(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("video", id)
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "get video", Err: err}
	}
	return video, nil
}

func (r *VideoRepository) ListVideos(ctx context.Context) ([]models.VideoSummary, error) {
	query := `
		SELECT ` + videoColumns + `,
			(SELECT COUNT(*) FROM questions q WHERE q.video_id = videos.id)
		FROM videos
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list videos", Err: err}
	}
	defer rows.Close()

	videos := []models.VideoSummary{}
	for rows.Next() {
		var count int
		video, err := scanVideo(rows, &count)
		if err != nil {
			return nil, &apperr.PersistenceError{Op: "scan video", Err: err}
		}
		videos = append(videos, models.VideoSummary{Video: *video, MCQCount: count})
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list videos", Err: err}
	}
	return videos, nil
}

func (r *VideoRepository) ListVideosByStatus(ctx context.Context, statuses ...models.Status) ([]models.Video, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT ` + videoColumns + ` FROM videos WHERE status = ANY($1) ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list videos by status", Err: err}
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, &apperr.PersistenceError{Op: "scan video", Err: err}
		}
		videos = append(videos, *video)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list videos by status", Err: err}
	}
	return videos, nil
}

func (r *VideoRepository) DeleteVideo(ctx context.Context, id string) error {
	// segments and questions go with the row via ON DELETE CASCADE
	return r.exec(ctx, "delete video", id, `DELETE FROM videos WHERE id = $1`, id)
}

func (r *VideoRepository) TransitionStatus(ctx context.Context, id string, from, to models.Status) error {
	const updateSQL = `
		UPDATE videos
		SET status = $1, error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, updateSQL, to, id, from)
	if err != nil {
		return &apperr.PersistenceError{Op: "transition status", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &apperr.PersistenceError{Op: "transition status", Err: err}
	}
	if rows > 0 {
		return nil
	}

	var current models.Status
	err = r.db.QueryRowContext(ctx, `SELECT status FROM videos WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("video", id)
	}
	if err != nil {
		return &apperr.PersistenceError{Op: "transition status", Err: err}
	}
	return fmt.Errorf("video %s is %s, expected %s: %w", id, current, from, apperr.ErrStatusConflict)
}

func (r *VideoRepository) SetStatus(ctx context.Context, id string, status models.Status, errMsg string) error {
	const updateSQL = `
		UPDATE videos
		SET status = $1, error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`
	return r.exec(ctx, "set status", id, updateSQL, status, errMsg, id)
}

func (r *VideoRepository) SetDuration(ctx context.Context, id string, seconds float64) error {
	const updateSQL = `UPDATE videos SET duration = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	return r.exec(ctx, "set duration", id, updateSQL, seconds, id)
}

func (r *VideoRepository) SetThumbnail(ctx context.Context, id string, key string) error {
	const updateSQL = `UPDATE videos SET thumbnail_key = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	return r.exec(ctx, "set thumbnail", id, updateSQL, key, id)
}

// exec runs a single-row statement and reports a missing video as not found.
func (r *VideoRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &apperr.PersistenceError{Op: op, Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &apperr.PersistenceError{Op: op, Err: err}
	}
	if rows == 0 {
		return apperr.NotFound("video", id)
	}
	return nil
}
