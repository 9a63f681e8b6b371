package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EmbeddingDimensions matches the OpenAI small/ada embedding models.
const EmbeddingDimensions = 1536

var schema = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		filename      TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		file_key      TEXT NOT NULL,
		size          BIGINT NOT NULL DEFAULT 0,
		duration      DOUBLE PRECISION NOT NULL DEFAULT 0,
		status        TEXT NOT NULL DEFAULT 'processing',
		error         TEXT NOT NULL DEFAULT '',
		thumbnail_key TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id         TEXT PRIMARY KEY,
		video_id   TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		idx        INTEGER NOT NULL,
		start_time DOUBLE PRECISION NOT NULL,
		end_time   DOUBLE PRECISION NOT NULL,
		text       TEXT NOT NULL,
		UNIQUE (video_id, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id                TEXT PRIMARY KEY,
		seq               BIGSERIAL,
		video_id          TEXT NOT NULL REFERENCES videos (id) ON DELETE CASCADE,
		segment_id        TEXT REFERENCES segments (id) ON DELETE CASCADE,
		question          TEXT NOT NULL,
		options           JSONB NOT NULL,
		correct_option_id TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_video_id ON questions (video_id, seq)`,
}

var vectorSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	fmt.Sprintf(`ALTER TABLE segments ADD COLUMN IF NOT EXISTS embedding vector(%d)`, EmbeddingDimensions),
}

// Migrate creates the tables if they do not exist. withVectors adds the
// pgvector extension and the segment embedding column.
func Migrate(ctx context.Context, db *sql.DB, withVectors bool) error {
	stmts := schema
	if withVectors {
		stmts = append(append([]string{}, schema...), vectorSchema...)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
