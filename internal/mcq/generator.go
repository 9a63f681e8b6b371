package mcq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type Generator interface {
	Generate(ctx context.Context, transcript string) ([]RawQuestion, error)
}

// HTTPGenerator posts the transcript to an MCQ service that answers with the
// question array.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string, timeout time.Duration) *HTTPGenerator {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPGenerator{url: url, client: &http.Client{Timeout: timeout}}
}

func (g *HTTPGenerator) Generate(ctx context.Context, transcript string) ([]RawQuestion, error) {
	payload, err := json.Marshal(map[string]string{"transcript": transcript})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, providerError("mcq service", fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("mcq service", fmt.Errorf("error reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerError("mcq service", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, truncate(string(body), 500)))
	}

	questions, err := ParseQuestions(string(body))
	if err != nil {
		return nil, providerError("mcq service", err)
	}
	return questions, nil
}

const systemPrompt = `Generate only 2 multiple choice questions from this transcript. Return ONLY valid JSON array format:
[{"question":"Your question here?","options":[{"option":"A","value":"Answer A"},{"option":"B","value":"Answer B"},{"option":"C","value":"Answer C"},{"option":"D","value":"Answer D"}],"correct_answer":{"option":"A","value":"Answer A"}}]`

// OpenAIGenerator asks a chat model for the questions. Any OpenAI-compatible
// endpoint works, including a local Ollama server.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 4 * time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, transcript string) ([]RawQuestion, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("transcript cannot be empty")
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		MaxTokens:   1500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transcript: " + transcript},
		},
	})
	if err != nil {
		return nil, providerError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, providerError("openai", fmt.Errorf("no choices in response"))
	}

	questions, err := ParseQuestions(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, providerError("openai", err)
	}
	return questions, nil
}

// NewGenerator selects a backend by name.
func NewGenerator(backend, serviceURL string, cfg OpenAIConfig) (Generator, error) {
	switch backend {
	case "http", "":
		return NewHTTPGenerator(serviceURL, cfg.Timeout), nil
	case "openai":
		return NewOpenAIGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown MCQ backend %q", backend)
	}
}
