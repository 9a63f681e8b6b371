package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

const questionColumns = `id, video_id, segment_id, question, options, correct_option_id, created_at, updated_at`

type QuestionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q         models.Question
		segmentID sql.NullString
		options   []byte
	)
	err := row.Scan(&q.ID, &q.VideoID, &segmentID, &q.Question, &options, &q.CorrectOptionID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.SegmentID = segmentID.String
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, err
	}
	return &q, nil
}

// queryQuestions returns the questions matching where, in insertion order.
func queryQuestions(ctx context.Context, db querier, where string, args ...any) ([]models.Question, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list questions", Err: err}
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, &apperr.PersistenceError{Op: "scan question", Err: err}
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.PersistenceError{Op: "list questions", Err: err}
	}
	return questions, nil
}

func insertQuestions(ctx context.Context, tx *sql.Tx, videoID, segmentID string, questions []models.Question) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, video_id, segment_id, question, options, correct_option_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return &apperr.PersistenceError{Op: "prepare question insert", Err: err}
	}
	defer stmt.Close()

	segment := sql.NullString{String: segmentID, Valid: segmentID != ""}
	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return &apperr.PersistenceError{Op: "encode options", Err: err}
		}
		_, err = stmt.ExecContext(ctx, q.ID, videoID, segment, q.Question, options, q.CorrectOptionID)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return apperr.Validation("question %s already exists", q.ID)
			}
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				return apperr.NotFound("video", videoID)
			}
			return &apperr.PersistenceError{Op: "insert question", Err: err}
		}
	}
	return nil
}

func (r *QuestionRepository) ReplaceSegmentQuestions(ctx context.Context, videoID, segmentID string, questions []models.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.PersistenceError{Op: "begin replace questions", Err: err}
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

	_, err = tx.ExecContext(ctx, `DELETE FROM questions WHERE video_id = $1 AND segment_id = $2`, videoID, segmentID)
	if err != nil {
		return &apperr.PersistenceError{Op: "clear segment questions", Err: err}
	}
	if err := insertQuestions(ctx, tx, videoID, segmentID, questions); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "commit questions", Err: err}
	}
	return nil
}

func (r *QuestionRepository) AddQuestions(ctx context.Context, videoID string, questions []models.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.PersistenceError{Op: "begin add questions", Err: err}
	}
	defer tx.Rollback()

	if err := insertQuestions(ctx, tx, videoID, "", questions); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &apperr.PersistenceError{Op: "commit questions", Err: err}
	}
	return nil
}

func (r *QuestionRepository) Questions(ctx context.Context, videoID string) ([]models.Question, error) {
	return queryQuestions(ctx, r.db, `WHERE video_id = $1`, videoID)
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("question", id)
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "get question", Err: err}
	}
	return q, nil
}

func (r *QuestionRepository) ReplaceQuestion(ctx context.Context, question models.Question) error {
	options, err := json.Marshal(question.Options)
	if err != nil {
		return &apperr.PersistenceError{Op: "encode options", Err: err}
	}

	const updateSQL = `
		UPDATE questions
		SET question = $1, options = $2, correct_option_id = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, updateSQL, question.Question, options, question.CorrectOptionID, question.ID)
	if err != nil {
		return &apperr.PersistenceError{Op: "update question", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return &apperr.PersistenceError{Op: "update question", Err: err}
	}
	if rows == 0 {
		return apperr.NotFound("question", question.ID)
	}
	return nil
}

func (r *QuestionRepository) DeleteQuestion(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return &apperr.PersistenceError{Op: "delete question", Err: err}
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return &apperr.PersistenceError{Op: "delete question", Err: err}
	}
	if rows == 0 {
		return apperr.NotFound("question", id)
	}
	return nil
}
