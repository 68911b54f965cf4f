// Package anilist looks up series metadata on the AniList GraphQL API.
package anilist

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

const searchQuery = `
query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {
      id
      title { romaji english }
      episodes
      format
      averageScore
      siteUrl
    }
  }
}`

// Media is one search hit.
type Media struct {
	ID           int
	Title        string
	Episodes     int
	Format       string
	AverageScore int
	SiteURL      string
}

// Client calls the AniList GraphQL endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://graphql.anilist.co"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data struct {
		Page struct {
			Media []struct {
				ID    int `json:"id"`
				Title struct {
					Romaji  string `json:"romaji"`
					English string `json:"english"`
				} `json:"title"`
				Episodes     int    `json:"episodes"`
				Format       string `json:"format"`
				AverageScore int    `json:"averageScore"`
				SiteURL      string `json:"siteUrl"`
			} `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Search returns up to limit anime matching the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Media, error) {
	if limit <= 0 {
		limit = 5
	}
	body, err := json.Marshal(gqlRequest{
		Query:     searchQuery,
		Variables: map[string]any{"search": query, "perPage": limit},
	})
	if err != nil {
		return nil, fmt.Errorf("anilist: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anilist: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anilist: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("anilist: unexpected status %d", resp.StatusCode)
	}

	var parsed gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("anilist: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("anilist: api error: %s", parsed.Errors[0].Message)
	}

	out := make([]Media, 0, len(parsed.Data.Page.Media))
	for _, m := range parsed.Data.Page.Media {
		title := m.Title.English
		if title == "" {
			title = m.Title.Romaji
		}
		out = append(out, Media{
			ID:           m.ID,
			Title:        title,
			Episodes:     m.Episodes,
			Format:       m.Format,
			AverageScore: m.AverageScore,
			SiteURL:      m.SiteURL,
		})
	}

	logger.LogEvent(ctx, logger.Providers, slog.LevelDebug, "anilist.search",
		slog.String("payload", logger.SanitizeLimit(query, 64)),
		slog.Int("count", len(out)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return out, nil
}
