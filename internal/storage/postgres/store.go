// Package postgres implements the store on PostgreSQL through database/sql and
// lib/pq, with pgvector for segment search.
package postgres

import (
	"database/sql"

	"jamesfarrell.me/video-mcq/internal/storage"
)

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Searcher = (*Store)(nil)
)

type Store struct {
	*VideoRepository
	*TranscriptionRepository
	*QuestionRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		VideoRepository:         NewVideoRepository(db),
		TranscriptionRepository: NewTranscriptionRepository(db),
		QuestionRepository:      NewQuestionRepository(db),
	}
}
