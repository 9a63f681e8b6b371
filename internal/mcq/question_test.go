package mcq

import (
	"encoding/json"
	"errors"
	"testing"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

func TestNormalize(t *testing.T) {
	raw := []RawQuestion{
		{
			Question: " What is Go? ",
			Options: []RawOption{
				{Option: "A", Value: "A language"},
				{Option: "B", Value: "A game"},
			},
			CorrectAnswer: RawOption{Option: "A", Value: "A language"},
		},
		{
			Question: "Which is prime?",
			Options: []RawOption{
				{Option: "A", Value: "4"},
				{Option: "B", Value: "7"},
			},
			CorrectAnswer: RawOption{Option: "b"},
		},
	}

	questions, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("Normalize() returned %d questions", len(questions))
	}

	seen := map[string]bool{}
	for _, q := range questions {
		if q.ID == "" || seen[q.ID] {
			t.Errorf("question id %q empty or reused", q.ID)
		}
		seen[q.ID] = true

		matches := 0
		for _, o := range q.Options {
			if o.ID == "" || seen[o.ID] {
				t.Errorf("option id %q empty or reused", o.ID)
			}
			seen[o.ID] = true
			if o.ID == q.CorrectOptionID {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("question %q: %d options match correctOptionId, want 1", q.Question, matches)
		}
	}

	if questions[0].Question != "What is Go?" {
		t.Errorf("question text = %q", questions[0].Question)
	}
	if correct, _ := questions[1].CorrectOption(); correct.Text != "7" {
		t.Errorf("correct option = %+v, want 7", correct)
	}
}

func TestNormalizeLabelCase(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		correct string
	}{
		{"lower case answer", "a", "x"},
		{"upper case answer", "A", "x"},
		{"padded answer", " b ", "y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions, err := Normalize([]RawQuestion{{
				Question:      "Q?",
				Options:       []RawOption{{Option: "A", Value: "x"}, {Option: "B", Value: "y"}},
				CorrectAnswer: RawOption{Option: tt.label},
			}})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			correct, ok := questions[0].CorrectOption()
			if !ok || correct.Text != tt.correct {
				t.Errorf("correct option = %+v, want %q", correct, tt.correct)
			}
		})
	}
}

func TestNormalizeUnmatchedLabel(t *testing.T) {
	raw := []RawQuestion{
		{
			Question:      "Q?",
			Options:       []RawOption{{Option: "A", Value: "x"}, {Option: "B", Value: "y"}},
			CorrectAnswer: RawOption{Option: "E", Value: "z"},
		},
		{
			Question:      "Q2?",
			Options:       []RawOption{{Option: "A", Value: "x"}, {Option: "B", Value: "y"}},
			CorrectAnswer: RawOption{Option: "A"},
		},
	}

	questions, err := Normalize(raw)

	var mapErr *apperr.MappingError
	if !errors.As(err, &mapErr) {
		t.Fatalf("Normalize() error = %v, want MappingError", err)
	}
	if mapErr.Label != "E" || mapErr.QuestionID != questions[0].ID {
		t.Errorf("MappingError = %+v", mapErr)
	}
	if len(questions) != 2 {
		t.Fatalf("Normalize() dropped questions: got %d", len(questions))
	}
	if questions[0].CorrectOptionID != "" {
		t.Errorf("unmatched question correctOptionId = %q, want empty", questions[0].CorrectOptionID)
	}
	if questions[1].CorrectOptionID == "" {
		t.Error("matched question lost its correct option")
	}
}

func TestRawOptionUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		data string
		want RawOption
	}{
		{"standard", `{"option":"A","value":"x"}`, RawOption{Option: "A", Value: "x"}},
		{"prefixed key", `{"option_label":"B","value":"y"}`, RawOption{Option: "B", Value: "y"}},
		{"option wins", `{"optionX":"Z","option":"C","value":"z"}`, RawOption{Option: "C", Value: "z"}},
		{"bare string", `"D"`, RawOption{Option: "D"}},
		{"no label", `{"value":"v"}`, RawOption{Value: "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RawOption
			if err := json.Unmarshal([]byte(tt.data), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	opts := []models.Option{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}

	tests := []struct {
		name    string
		q       models.Question
		wantErr bool
	}{
		{"valid", models.Question{Question: "Q?", Options: opts, CorrectOptionID: "b"}, false},
		{"empty prompt", models.Question{Question: "  ", Options: opts, CorrectOptionID: "a"}, true},
		{"one option", models.Question{Question: "Q?", Options: opts[:1], CorrectOptionID: "a"}, true},
		{"unknown correct", models.Question{Question: "Q?", Options: opts, CorrectOptionID: "c"}, true},
		{"empty correct", models.Question{Question: "Q?", Options: opts}, true},
		{"duplicate ids", models.Question{Question: "Q?", Options: []models.Option{{ID: "a"}, {ID: "a"}}, CorrectOptionID: "a"}, true},
		{"missing option id", models.Question{Question: "Q?", Options: []models.Option{{ID: "a"}, {}}, CorrectOptionID: "a"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}
