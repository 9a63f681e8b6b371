package models

import (
	"time"
)

type Status string

const (
	StatusProcessing   Status = "processing"
	StatusTranscribing Status = "transcribing"
	StatusGenerating   Status = "generating"
	StatusCompleted    Status = "completed"
	StatusError        Status = "error"
)

var statuses = []Status{
	StatusProcessing,
	StatusTranscribing,
	StatusGenerating,
	StatusCompleted,
	StatusError,
}

// Valid reports whether s is one of the known pipeline states.
func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no orchestrator will move the video further.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	FileKey      string    `json:"fileKey"`
	Size         int64     `json:"size"`
	Duration     float64   `json:"duration"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	ThumbnailKey string    `json:"thumbnailKey,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// VideoSummary is a list entry; MCQCount is omitted when no questions exist.
type VideoSummary struct {
	Video
	MCQCount int `json:"mcqCount,omitempty"`
}

type Segment struct {
	ID        string     `json:"id"`
	Index     int        `json:"index"`
	StartTime float64    `json:"startTime"`
	EndTime   float64    `json:"endTime"`
	Text      string     `json:"text"`
	Questions []Question `json:"questions,omitempty"`
}

type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Label string `json:"label,omitempty"`
}

type Question struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"videoId,omitempty"`
	SegmentID       string    `json:"segmentId,omitempty"`
	Question        string    `json:"question"`
	Options         []Option  `json:"options"`
	CorrectOptionID string    `json:"correctOptionId"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

// CorrectOption returns the option whose id equals CorrectOptionID.
func (q Question) CorrectOption() (Option, bool) {
	for _, o := range q.Options {
		if o.ID == q.CorrectOptionID {
			return o, true
		}
	}
	return Option{}, false
}

// Utterance is a provider-supplied span of speech, in seconds.
type Utterance struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
	Speaker  string  `json:"speaker,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type SearchResult struct {
	VideoID    string  `json:"videoId"`
	SegmentID  string  `json:"segmentId"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Similarity float64 `json:"similarity"`
}
