// Package ai proxies explain and debug questions to an OpenAI-compatible
// chat-completions endpoint. Like the execution proxy, it is request/response
// glue with no connection to room semantics.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured means no upstream endpoint was set.
var ErrNotConfigured = errors.New("ai service not configured")

// ExplainRequest asks a free-form question about code.
type ExplainRequest struct {
	Question string `json:"question" validate:"required"`
}

// DebugRequest asks why a snippet produced an error.
type DebugRequest struct {
	Code         string `json:"code" validate:"required"`
	ErrorMessage string `json:"errorMessage"`
}

// Answer is the upstream's free-text reply.
type Answer struct {
	Answer string `json:"answer"`
}

// Client calls the configured chat-completions upstream.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Configured reports whether an upstream endpoint was provided.
func (c *Client) Configured() bool { return c.baseURL != "" }

// Explain answers a question about code.
func (c *Client) Explain(ctx context.Context, req ExplainRequest) (Answer, error) {
	return c.complete(ctx, req.Question)
}

// Debug asks the upstream to diagnose a failing snippet.
func (c *Client) Debug(ctx context.Context, req DebugRequest) (Answer, error) {
	prompt := fmt.Sprintf(
		"This code produced an error.\n\nCode:\n%s\n\nError:\n%s\n\nExplain the cause and how to fix it.",
		req.Code, req.ErrorMessage)
	return c.complete(ctx, prompt)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string) (Answer, error) {
	if !c.Configured() {
		return Answer{}, ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise programming assistant helping students understand code."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Answer{}, fmt.Errorf("call ai service: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("ai completion", "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("ai service returned %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Answer{}, fmt.Errorf("decode ai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Answer{}, errors.New("ai service returned no choices")
	}
	return Answer{Answer: out.Choices[0].Message.Content}, nil
}
