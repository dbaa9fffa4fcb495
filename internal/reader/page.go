package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024
	// DefaultMaxChars bounds the text handed to translation providers.
	DefaultMaxChars = 5000

	defaultUserAgent = "voxlate-reader/1.0"
)

// ErrInvalidURL rejects URLs that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("url must be an absolute http or https URL")

// Page is the readable text extracted from a web page.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

// Options controls fetching and extraction.
type Options struct {
	Timeout       time.Duration
	BodyByteLimit int64
	MaxChars      int
	UserAgent     string
	HTTPClient    *http.Client
}

// Reader fetches pages and extracts their main text.
type Reader struct {
	opts Options
}

func New(opts Options) *Reader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.BodyByteLimit <= 0 {
		opts.BodyByteLimit = DefaultBodyByteLimit
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Reader{opts: opts}
}

// Fetch downloads rawURL and returns its readable text clipped to MaxChars.
func (r *Reader) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	pageURL, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.BodyByteLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var title, text string
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		text = CleanText(string(body))
	} else {
		title, text, err = extractArticle(body, pageURL)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		return nil, fmt.Errorf("reader extracted empty content")
	}

	clipped, truncated := TruncateText(text, r.opts.MaxChars)
	return &Page{
		URL:       pageURL.String(),
		Title:     title,
		Text:      clipped,
		Chars:     len([]rune(clipped)),
		Truncated: truncated,
	}, nil
}

func extractArticle(body []byte, pageURL *url.URL) (string, string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", "", fmt.Errorf("render readability text: %w", err)
	}

	title := strings.TrimSpace(article.Title())
	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		text = title
	}
	return title, text, nil
}

// ParseURL accepts absolute http and https URLs only.
func ParseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrInvalidURL
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	return parsed, nil
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}
	return strings.Join(paragraphs, "\n\n")
}

// TruncateText clips text to maxChars runes and appends a single ellipsis rune when truncated.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}
	return strings.TrimSpace(string(runes[:maxChars-1])) + "…", true
}
