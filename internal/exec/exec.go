// Package exec proxies code snapshots to the Piston execution service. It is
// surrounding-product glue: nothing here touches room state, and the
// collaboration core has no dependency on it.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnsupportedLanguage means the requested language has no configured runtime.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Request is a code snapshot to execute.
type Request struct {
	Language string `json:"language" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Stdin    string `json:"stdin"`
}

// Result carries whatever the program produced: stdout if any, stderr otherwise.
type Result struct {
	Output string `json:"output"`
}

type langInfo struct {
	ext     string
	version string
}

// Runtimes the product exposes in its language picker.
var languages = map[string]langInfo{
	"javascript": {ext: "js", version: "18.15.0"},
	"python":     {ext: "py", version: "3.10.0"},
	"java":       {ext: "java", version: "15.0.2"},
	"cpp":        {ext: "cpp", version: "10.2.0"},
}

// Client talks to a Piston-compatible execute endpoint.
type Client struct {
	url   string
	httpc *http.Client
	log   *slog.Logger
}

func NewClient(url string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		url:   url,
		httpc: &http.Client{Timeout: timeout},
		log:   log,
	}
}

type pistonFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Stdin    string       `json:"stdin"`
	Files    []pistonFile `json:"files"`
}

type pistonResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"run"`
}

// Run executes a snapshot and returns its combined output.
func (c *Client) Run(ctx context.Context, req Request) (Result, error) {
	info, ok := languages[req.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	body, err := json.Marshal(pistonRequest{
		Language: req.Language,
		Version:  info.version,
		Stdin:    req.Stdin,
		Files:    []pistonFile{{Name: "main." + info.ext, Content: req.Code}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call execution service: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("executed snapshot", "language", req.Language, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("execution service returned %s", resp.Status)
	}

	var out pistonResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode execution response: %w", err)
	}

	output := out.Run.Stdout
	if output == "" {
		output = out.Run.Stderr
	}
	if output == "" {
		output = "No output"
	}
	return Result{Output: output}, nil
}
