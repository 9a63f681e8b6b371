package mcq

import (
	"fmt"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

type ExportFormat string

const (
	// FormatQuiz is {id, question, options:[{id,text}], correctOptionId}.
	FormatQuiz ExportFormat = "quiz"
	// FormatLabeled is {id, question, options:[{option,value}], correct_answer:{option,value}}.
	FormatLabeled ExportFormat = "labeled"
)

type QuizOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuizQuestion struct {
	ID              string       `json:"id"`
	Question        string       `json:"question"`
	Options         []QuizOption `json:"options"`
	CorrectOptionID string       `json:"correctOptionId"`
}

type LabeledQuestion struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	Options       []RawOption `json:"options"`
	CorrectAnswer RawOption   `json:"correct_answer"`
}

// Export renders questions in one of the two download shapes.
func Export(questions []models.Question, format ExportFormat) (any, error) {
	switch format {
	case FormatQuiz, "":
		out := make([]QuizQuestion, 0, len(questions))
		for _, q := range questions {
			qq := QuizQuestion{ID: q.ID, Question: q.Question, CorrectOptionID: q.CorrectOptionID}
			for _, o := range q.Options {
				qq.Options = append(qq.Options, QuizOption{ID: o.ID, Text: o.Text})
			}
			out = append(out, qq)
		}
		return out, nil

	case FormatLabeled:
		out := make([]LabeledQuestion, 0, len(questions))
		for _, q := range questions {
			lq := LabeledQuestion{ID: q.ID, Question: q.Question}
			for i, o := range q.Options {
				lq.Options = append(lq.Options, RawOption{Option: optionLabel(o, i), Value: o.Text})
				if o.ID == q.CorrectOptionID {
					lq.CorrectAnswer = RawOption{Option: optionLabel(o, i), Value: o.Text}
				}
			}
			out = append(out, lq)
		}
		return out, nil

	default:
		return nil, apperr.Validation("unknown export format %q", format)
	}
}

// optionLabel falls back to A, B, C... for options created without a label.
func optionLabel(o models.Option, index int) string {
	if o.Label != "" {
		return o.Label
	}
	if index < 26 {
		return string(rune('A' + index))
	}
	return fmt.Sprintf("%d", index+1)
}
