// Package genai wraps the text-generation service behind a plain
// prompt-in/text-out call with token-usage metadata.
package genai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// DefaultModel is used when no model id is configured.
const DefaultModel = "gemini-2.5-pro"

// extractionTemperature keeps the output deterministic enough for
// structured extraction.
const extractionTemperature = 0.1

// Usage is the token accounting reported for one generation call.
type Usage struct {
	PromptTokens int64
	OutputTokens int64
	TotalTokens  int64
}

// Add accumulates another call's usage into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Result is the full text of one generation call plus its usage metadata.
type Result struct {
	Text  string
	Usage Usage
}

// Client calls an OpenAI-compatible chat-completion endpoint. The endpoint
// and credentials come from OPENAI_BASE_URL and OPENAI_API_KEY.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a generation client for the given model id.
// It returns an error if OPENAI_API_KEY is not set.
func NewClient(model string) (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultModel
	}

	// openai-go reads OPENAI_API_KEY and OPENAI_BASE_URL from the environment
	client := openai.NewClient()

	return &Client{client: &client, model: model}, nil
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(extractionTemperature),
	}
}

// Generate sends the prompt and returns the complete response text with
// usage metadata. Rate-limit errors (HTTP 429) are retried with exponential
// backoff; every other failure is returned immediately, to be handled by the
// caller's per-chunk recovery policy.
func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	var result Result

	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, c.params(prompt))
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}
		result.Text = resp.Choices[0].Message.Content
		result.Usage = Usage{
			PromptTokens: resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(rateLimitBackoff(), ctx))
	return result, err
}

// GenerateStream sends the prompt and drains the streaming response to
// completion before returning. progress, if non-nil, is invoked once per
// received text fragment. Streaming calls are not retried: a partially
// consumed stream cannot be resumed, and the caller treats a failed call
// the same as an unparseable response.
func (c *Client) GenerateStream(ctx context.Context, prompt string, progress func()) (Result, error) {
	params := c.params(prompt)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	var text strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			text.WriteString(chunk.Choices[0].Delta.Content)
			if progress != nil {
				progress()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return Result{}, fmt.Errorf("stream completion: %w", err)
	}

	return Result{
		Text: text.String(),
		Usage: Usage{
			PromptTokens: acc.Usage.PromptTokens,
			OutputTokens: acc.Usage.CompletionTokens,
			TotalTokens:  acc.Usage.TotalTokens,
		},
	}, nil
}

// rateLimitBackoff bounds 429 retries to well under a chunk's cost.
func rateLimitBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
