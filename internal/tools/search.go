package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultSearchEndpoint = "https://google.serper.dev/search"

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey     string
	Endpoint   string
	NumResults int
}

// Search queries a Serper-compatible search API.
type Search struct {
	cfg    SearchConfig
	client *http.Client
}

// NewSearch creates a search tool.
func NewSearch(cfg SearchConfig, client *http.Client) *Search {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultSearchEndpoint
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = 5
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Search{cfg: cfg, client: client}
}

// Name implements Tool.
func (s *Search) Name() string { return NameSearch }

// Description implements Tool.
func (s *Search) Description() string {
	return "Search the web for current information such as weather, events, prices and opening hours."
}

// Parameters implements Tool.
func (s *Search) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
		},
		"required": []string{"query"},
	}
}

type serperResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Call implements Tool.
func (s *Search) Call(ctx context.Context, args string) string {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err != nil || payload.Query == "" {
		payload.Query = strings.TrimSpace(args)
	}
	if payload.Query == "" {
		return "[search] error: empty query"
	}

	results, err := s.query(ctx, payload.Query)
	if err != nil {
		return fmt.Sprintf("[search] failed: %v", err)
	}
	return results
}

func (s *Search) query(ctx context.Context, q string) (string, error) {
	body, err := json.Marshal(map[string]any{"q": q, "num": s.cfg.NumResults})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-KEY", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var b strings.Builder
	if parsed.AnswerBox != nil {
		answer := parsed.AnswerBox.Answer
		if answer == "" {
			answer = parsed.AnswerBox.Snippet
		}
		if answer != "" {
			fmt.Fprintf(&b, "Answer: %s\n\n", answer)
		}
	}
	for i, r := range parsed.Organic {
		if i >= s.cfg.NumResults {
			break
		}
		fmt.Fprintf(&b, "Title: %s\nLink: %s\nSnippet: %s\n\n---\n", r.Title, r.Link, r.Snippet)
	}
	if b.Len() == 0 {
		return "No results found for: " + q, nil
	}
	return strings.TrimSpace(b.String()), nil
}
