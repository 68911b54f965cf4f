// Package aichat talks to a Gemini-style generateContent endpoint and
// keeps short per-user conversation context.
package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"animedrive/core/logger"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// SystemPrompt steers every conversation.
	SystemPrompt string
}

// Client is a minimal generateContent caller.
type Client struct {
	opts Options
	http *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	return &Client{
		opts: opts,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiPart struct {
	Text string `json:"text"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiRequest struct {
	SystemInstruction *apiContent  `json:"system_instruction,omitempty"`
	Contents          []apiContent `json:"contents"`
}

type apiResponse struct {
	Candidates []struct {
		Content apiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the conversation and returns the model's reply text.
func (c *Client) Generate(ctx context.Context, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("aichat: empty conversation")
	}

	req := apiRequest{Contents: make([]apiContent, 0, len(turns))}
	if c.opts.SystemPrompt != "" {
		req.SystemInstruction = &apiContent{Parts: []apiPart{{Text: c.opts.SystemPrompt}}}
	}
	for _, t := range turns {
		req.Contents = append(req.Contents, apiContent{
			Role:  string(t.Role),
			Parts: []apiPart{{Text: t.Text}},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("aichat: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.opts.BaseURL, c.opts.Model, c.opts.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("aichat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("aichat: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("aichat: unexpected status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("aichat: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("aichat: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("aichat: empty candidate")
	}

	logger.LogEvent(ctx, logger.Providers, slog.LevelDebug, "aichat.generate",
		slog.String("mode", c.opts.Model),
		slog.Int("count", len(turns)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
