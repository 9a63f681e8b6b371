// Package mcq generates multiple-choice questions for transcript segments.
package mcq

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// RawOption is an option as generators return it: a label and its text.
type RawOption struct {
	Option string `json:"option"`
	Value  string `json:"value"`
}

// UnmarshalJSON also accepts label keys such as "option_label" or "optionA"
// when "option" itself is missing, and a bare string as the label.
func (o *RawOption) UnmarshalJSON(data []byte) error {
	*o = RawOption{}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &o.Option)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if v, ok := fields["value"]; ok {
		if err := json.Unmarshal(v, &o.Value); err != nil {
			return err
		}
	}
	if v, ok := fields["option"]; ok {
		return json.Unmarshal(v, &o.Option)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.HasPrefix(k, "option") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return json.Unmarshal(fields[keys[0]], &o.Option)
}

// RawQuestion is one generated question before normalization.
type RawQuestion struct {
	ID            string      `json:"id,omitempty"`
	Question      string      `json:"question"`
	Options       []RawOption `json:"options"`
	CorrectAnswer RawOption   `json:"correct_answer"`

	// set by generators that report failures inline
	Error   bool   `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

var newID = uuid.NewString

// Normalize gives every question and option a fresh id and maps the correct
// answer label onto an option id. A question whose label matches no option
// keeps an empty CorrectOptionID; each such case is reported as a
// *apperr.MappingError in the joined error, and the questions are still
// returned.
func Normalize(raw []RawQuestion) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(raw))
	var errs []error

	for _, rq := range raw {
		q := models.Question{
			ID:       newID(),
			Question: strings.TrimSpace(rq.Question),
			Options:  make([]models.Option, 0, len(rq.Options)),
		}
		label := strings.TrimSpace(rq.CorrectAnswer.Option)
		for _, ro := range rq.Options {
			opt := models.Option{
				ID:    newID(),
				Text:  strings.TrimSpace(ro.Value),
				Label: strings.TrimSpace(ro.Option),
			}
			if q.CorrectOptionID == "" && label != "" && strings.EqualFold(opt.Label, label) {
				q.CorrectOptionID = opt.ID
			}
			q.Options = append(q.Options, opt)
		}
		if q.CorrectOptionID == "" {
			errs = append(errs, &apperr.MappingError{QuestionID: q.ID, Label: label})
		}
		questions = append(questions, q)
	}

	return questions, errors.Join(errs...)
}

// Validate checks a client-supplied question: a prompt, at least two options
// with unique non-empty ids, and a correct option id naming exactly one of them.
func Validate(q models.Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return apperr.Validation("question text is required")
	}
	if len(q.Options) < 2 {
		return apperr.Validation("question needs at least 2 options, got %d", len(q.Options))
	}

	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			return apperr.Validation("option id is required")
		}
		if seen[o.ID] {
			return apperr.Validation("duplicate option id %q", o.ID)
		}
		seen[o.ID] = true
	}
	if !seen[q.CorrectOptionID] {
		return apperr.Validation("correctOptionId %q matches no option", q.CorrectOptionID)
	}
	return nil
}
