package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"jamesfarrell.me/video-mcq/internal/apperr"
)

// Client converts text to embedding vectors using OpenAI's API.
type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  openai.SmallEmbedding3,
	}
}

// GetEmbedding embeds a single text.
func (c *Client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.GetEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GetEmbeddings embeds texts in one request, preserving input order.
func (c *Client) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, &apperr.ProviderError{Provider: "openai embeddings", Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &apperr.ProviderError{
			Provider: "openai embeddings",
			Err:      fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, &apperr.ProviderError{
				Provider: "openai embeddings",
				Err:      fmt.Errorf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
