package pkg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrEmbeddingDisabled = errors.New("embedding client not configured")

// EmbeddingClient calls a remote text embedding API.
// The API takes {"input": text} and answers {"embedding": [...]}.
type EmbeddingClient struct {
	client     *resty.Client
	url        string
	dimensions int
}

func NewEmbeddingClient(url, apiKey string, dimensions int) *EmbeddingClient {
	if url == "" {
		return nil
	}
	c := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &EmbeddingClient{client: c, url: url, dimensions: dimensions}
}

func (c *EmbeddingClient) Enabled() bool {
	return c != nil
}

func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c == nil {
		return nil, ErrEmbeddingDisabled
	}
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"input": text}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding api status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Embedding) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(out.Embedding), c.dimensions)
	}
	return out.Embedding, nil
}
