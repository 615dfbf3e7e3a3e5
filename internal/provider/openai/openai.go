// Package openai provides an OpenAI-compatible LLM provider client.
// It works with any API that implements the OpenAI chat completions
// interface (OpenAI, Mistral, Groq, vLLM, LiteLLM, etc.) via a
// configurable base URL.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/casahub/concierge/internal/provider"
)

// Client is an OpenAI-compatible LLM provider.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Client from the given configuration. The configuration
// must have been validated by the caller.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	return &Client{
		config: cfg,
		// Use a transport with response-header timeout instead of a global
		// client timeout. A global timeout kills long-running SSE streams;
		// per-request context handles cancellation.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		logger: logger,
	}
}

// Complete implements provider.Provider.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	oaiReq := buildRequest(c.config.Model, c.config.MaxTokens, req, false)

	resp, err := c.doRequest(ctx, oaiReq)
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return provider.CompletionResponse{}, handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return parseResponse(oaiResp), nil
}

// Stream implements provider.Provider.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	oaiReq := buildRequest(c.config.Model, c.config.MaxTokens, req, true)

	resp, err := c.doRequest(ctx, oaiReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		return nil, handleErrorResponse(resp)
	}

	// Increase scanner buffer to 1 MiB to handle large SSE lines
	// (e.g. long tool call arguments).
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ch := c.parseSSEStream(ctx, scanner)

	// Wrap to ensure body gets closed when the stream ends. Every chunk is
	// forwarded even after cancellation: the parser exits promptly once the
	// context is done, and consumers drain to the close, so the terminal
	// Err chunk is never dropped.
	out := make(chan provider.StreamChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		for chunk := range ch {
			out <- chunk
		}
	}()

	return out, nil
}

// ModelName implements provider.Provider.
func (c *Client) ModelName() string {
	return c.config.Model
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(field string) error {
	return fmt.Errorf("provider.openai: %s is required", field)
}

// Interface guard.
var _ provider.Provider = (*Client)(nil)
