package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultMaxChars bounds extracted page text to keep prompts small.
	DefaultMaxChars = 16000

	defaultBrowserlessURL = "https://chrome.browserless.io/content"
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	maxBodyBytes          = 5 << 20
)

// Output formats for extracted pages.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// textSelector lists the elements whose text is kept.
const textSelector = "title, h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote, dt, dd, figcaption"

// nestedSelector identifies containers whose descendants were already captured.
const nestedSelector = "p, li, td, th, pre, blockquote, dd"

// BrowserConfig configures page fetching.
type BrowserConfig struct {
	// BrowserlessToken enables the remote rendering service.
	BrowserlessToken string
	BrowserlessURL   string
	UserAgent        string
	MaxChars         int
	Format           string
	// RemoteTimeout caps the rendering service attempt. Under a caller
	// deadline the attempt also gets at most half the remaining time, so the
	// direct fallback always has the rest.
	RemoteTimeout time.Duration
	DirectTimeout time.Duration
}

// Browser fetches web pages and reduces them to plain text.
type Browser struct {
	cfg       BrowserConfig
	client    *http.Client
	converter *md.Converter
}

// NewBrowser creates a browser tool.
func NewBrowser(cfg BrowserConfig, client *http.Client) *Browser {
	if cfg.BrowserlessURL == "" {
		cfg.BrowserlessURL = defaultBrowserlessURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Format == "" {
		cfg.Format = FormatText
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 60 * time.Second
	}
	if cfg.DirectTimeout <= 0 {
		cfg.DirectTimeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}

	return &Browser{
		cfg:       cfg,
		client:    client,
		converter: md.NewConverter("", true, nil),
	}
}

// Name implements Tool.
func (b *Browser) Name() string { return NameBrowse }

// Description implements Tool.
func (b *Browser) Description() string {
	return "Fetch a web page and return its main text content."
}

// Parameters implements Tool.
func (b *Browser) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute http(s) URL of the page to read",
			},
		},
		"required": []string{"url"},
	}
}

// Call implements Tool.
func (b *Browser) Call(ctx context.Context, args string) string {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(args), &payload); err != nil || payload.URL == "" {
		payload.URL = strings.TrimSpace(args)
	}
	return b.Fetch(ctx, payload.URL)
}

// Fetch returns the text of the page at rawURL, truncated to MaxChars. Any
// failure is returned as a diagnostic string.
func (b *Browser) Fetch(ctx context.Context, rawURL string) string {
	if err := validateURL(rawURL); err != nil {
		return fmt.Sprintf("[browse] fetch failed: %v", err)
	}

	page, err := b.fetchHTML(ctx, rawURL)
	if err != nil {
		return fmt.Sprintf("[browse] fetch failed: %v", err)
	}

	text, err := b.Reduce(page)
	if err != nil {
		return fmt.Sprintf("[browse] parse failed: %v", err)
	}
	return truncateRunes(text, b.cfg.MaxChars)
}

// Reduce converts an HTML document into text in the configured format.
func (b *Browser) Reduce(page string) (string, error) {
	if b.cfg.Format == FormatMarkdown {
		return b.converter.ConvertString(page)
	}
	return ElementText(page)
}

// ElementText keeps the text of headings, paragraphs, list items, table cells
// and similar elements, one element per block.
func ElementText(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template, svg").Remove()

	var blocks []string
	doc.Find(textSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(nestedSelector).Length() > 0 {
			return
		}
		if text := collapseSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		if text := collapseSpace(doc.Find("body").Text()); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (b *Browser) fetchHTML(ctx context.Context, target string) (string, error) {
	if b.cfg.BrowserlessToken != "" {
		page, err := b.fetchRemote(ctx, target)
		if err == nil {
			return page, nil
		}
		direct, directErr := b.fetchDirect(ctx, target)
		if directErr != nil {
			return "", errors.Join(err, directErr)
		}
		return direct, nil
	}
	return b.fetchDirect(ctx, target)
}

func (b *Browser) fetchRemote(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.remoteTimeout(ctx))
	defer cancel()

	body, err := json.Marshal(map[string]string{"url": target})
	if err != nil {
		return "", err
	}

	endpoint := b.cfg.BrowserlessURL + "?token=" + url.QueryEscape(b.cfg.BrowserlessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Content-Type", "application/json")

	return b.do(req, "rendering service")
}

func (b *Browser) remoteTimeout(ctx context.Context) time.Duration {
	timeout := b.cfg.RemoteTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if half := time.Until(deadline) / 2; half < timeout {
			timeout = half
		}
	}
	return timeout
}

func (b *Browser) fetchDirect(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.DirectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	return b.do(req, "direct fetch")
}

func (b *Browser) do(req *http.Request, via string) (string, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", via, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%s: unexpected status %d", via, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%s: %w", via, err)
	}
	return string(data), nil
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
