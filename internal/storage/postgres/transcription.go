package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// TranscriptionRepository stores the transcript segments of a video and their
// search embeddings.
type TranscriptionRepository struct {
	db *sql.DB
}

func NewTranscriptionRepository(db *sql.DB) *TranscriptionRepository {
	return &TranscriptionRepository{db: db}
}

func (r *TranscriptionRepository) SaveSegments(ctx context.Context, videoID string, segments []models.Segment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.PersistenceError{Op: "begin save segments", Err: err}
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("video", videoID)
	}
	if err != nil {
		return &apperr.PersistenceError{Op: "lock video", Err: err}
	}

	// segment-linked questions cascade with the old segments
	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE video_id = $1`, videoID); err != nil {
		return &apperr.PersistenceError{Op: "clear segments", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (id, video_id, idx, start_time, end_time, text)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return &apperr.PersistenceError{Op: "prepare segment insert", Err: err}
	}
	defer stmt.Close()

	for _, seg := range segments {
		_, err = stmt.ExecContext(ctx, seg.ID, videoID, seg.Index, seg.StartTime, seg.EndTime, seg.Text)
		if err != nil {
			return &apperr.PersistenceError{Op: fmt.Sprintf("insert segment %d", seg.Index), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "commit segments", Err: err}
	}
	return nil
}

func (r *TranscriptionRepository) Segments(ctx context.Context, videoID string) ([]models.Segment, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID).Scan(&exists); err != nil {
		return nil, &apperr.PersistenceError{Op: "get video", Err: err}
	}
	if !exists {
		return nil, apperr.NotFound("video", videoID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, idx, start_time, end_time, text
		FROM segments
		WHERE video_id = $1
		ORDER BY idx
	`, videoID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list segments", Err: err}
	}
	defer rows.Close()

	var segments []models.Segment
	for rows.Next() {
		var seg models.Segment
		if err := rows.Scan(&seg.ID, &seg.Index, &seg.StartTime, &seg.EndTime, &seg.Text); err != nil {
			return nil, &apperr.PersistenceError{Op: "scan segment", Err: err}
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list segments", Err: err}
	}
	if len(segments) == 0 {
		return nil, nil
	}

	questions, err := queryQuestions(ctx, r.db, `WHERE video_id = $1 AND segment_id IS NOT NULL`, videoID)
	if err != nil {
		return nil, err
	}
	bySegment := make(map[string][]models.Question)
	for _, q := range questions {
		bySegment[q.SegmentID] = append(bySegment[q.SegmentID], q)
	}
	for i := range segments {
		segments[i].Questions = bySegment[segments[i].ID]
	}
	return segments, nil
}

func (r *TranscriptionRepository) SaveSegmentEmbeddings(ctx context.Context, embeddings map[string][]float32) error {
	stmt, err := r.db.PrepareContext(ctx, `UPDATE segments SET embedding = $1 WHERE id = $2`)
	if err != nil {
		return &apperr.PersistenceError{Op: "prepare embedding update", Err: err}
	}
	defer stmt.Close()

	for segmentID, embedding := range embeddings {
		if _, err := stmt.ExecContext(ctx, pgvector.NewVector(embedding), segmentID); err != nil {
			return &apperr.PersistenceError{Op: "save embedding " + segmentID, Err: err}
		}
	}
	return nil
}

func (r *TranscriptionRepository) SearchSegments(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
		WITH query_embedding AS (
			SELECT $1::vector AS vec
		)
		SELECT
			s.video_id,
			s.id,
			s.text,
			s.start_time,
			s.end_time,
			1 - (s.embedding <=> (SELECT vec FROM query_embedding)) AS similarity
		FROM segments s
		JOIN videos v ON v.id = s.video_id
		WHERE s.embedding IS NOT NULL AND v.status IN ('generating', 'completed')
		ORDER BY s.embedding <=> (SELECT vec FROM query_embedding)
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "search segments", Err: err}
	}
	defer rows.Close()

	results := []models.SearchResult{}
	for rows.Next() {
		var res models.SearchResult
		if err := rows.Scan(&res.VideoID, &res.SegmentID, &res.Text, &res.StartTime, &res.EndTime, &res.Similarity); err != nil {
			return nil, &apperr.PersistenceError{Op: "scan search result", Err: err}
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "search segments", Err: err}
	}
	return results, nil
}
