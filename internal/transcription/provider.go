package transcription

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// Transcript is what a provider returns for one media file.
type Transcript struct {
	Utterances []models.Utterance
	// Duration is the media length in seconds; zero when the provider does
	// not report it.
	Duration float64
}

type Provider interface {
	Transcribe(ctx context.Context, mediaPath string) (*Transcript, error)
}

// ProviderConfig points a provider at any Whisper-compatible endpoint
// (OpenAI, Lemonfox, a local server).
type ProviderConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

func newClient(cfg ProviderConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientCfg)
}

// Whisper requests verbose JSON and uses the returned segments as utterances.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisper(cfg ProviderConfig) *Whisper {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: newClient(cfg), model: model, language: cfg.Language}
}

func (w *Whisper) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: mediaPath,
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, &apperr.ProviderError{Provider: "whisper", Err: err}
	}

	tr := &Transcript{Duration: resp.Duration}
	for _, seg := range resp.Segments {
		tr.Utterances = append(tr.Utterances, models.Utterance{
			Text:     strings.TrimSpace(seg.Text),
			StartSec: seg.Start,
			EndSec:   seg.End,
		})
	}
	if len(tr.Utterances) == 0 && strings.TrimSpace(resp.Text) != "" {
		tr.Utterances = []models.Utterance{{Text: strings.TrimSpace(resp.Text), StartSec: 0, EndSec: resp.Duration}}
	}
	return tr, nil
}

// VTT requests a WebVTT transcript and parses its cues.
type VTT struct {
	client   *openai.Client
	model    string
	language string
}

func NewVTT(cfg ProviderConfig) *VTT {
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &VTT{client: newClient(cfg), model: model, language: cfg.Language}
}

func (v *VTT) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	resp, err := v.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    v.model,
		FilePath: mediaPath,
		Language: v.language,
		Format:   openai.AudioResponseFormatVTT,
	})
	if err != nil {
		return nil, &apperr.ProviderError{Provider: "vtt", Err: err}
	}
	return transcriptFromCues(resp.Text)
}

// transcriptFromCues leaves Duration unset. A WebVTT file does not carry the
// media length.
func transcriptFromCues(content string) (*Transcript, error) {
	utterances, err := ParseVTT(content)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: "vtt", Err: err}
	}
	return &Transcript{Utterances: utterances}, nil
}

// TranscriptFromVTT builds a transcript whose duration is the last cue end,
// for offline use where the media is not at hand.
func TranscriptFromVTT(content string) (*Transcript, error) {
	tr, err := transcriptFromCues(content)
	if err != nil {
		return nil, err
	}
	for _, u := range tr.Utterances {
		if u.EndSec > tr.Duration {
			tr.Duration = u.EndSec
		}
	}
	return tr, nil
}

// NewProvider selects a backend by name.
func NewProvider(backend string, cfg ProviderConfig) (Provider, error) {
	switch backend {
	case "whisper", "":
		return NewWhisper(cfg), nil
	case "vtt":
		return NewVTT(cfg), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", backend)
	}
}
