package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"horse.fit/voxlate/internal/language"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 4 << 20
	maxErrorBodyBytes  = 512
)

// baseProvider holds the credentials and HTTP client shared by vendor adapters.
type baseProvider struct {
	name   string
	client *http.Client

	mu  sync.RWMutex
	cfg ProviderConfig
}

func newBaseProvider(name string, client *http.Client, cfg ProviderConfig) baseProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return baseProvider{name: name, client: client, cfg: cfg}
}

func (b *baseProvider) Name() string {
	return b.name
}

func (b *baseProvider) Configure(cfg ProviderConfig) {
	b.mu.Lock()
	b.cfg = cfg
	b.mu.Unlock()
}

func (b *baseProvider) config() ProviderConfig {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg
}

// endpoint returns the configured override or fallback.
func (b *baseProvider) endpoint(fallback string) string {
	if override := strings.TrimSpace(b.config().Endpoint); override != "" {
		return strings.TrimRight(override, "/")
	}
	return fallback
}

// do sends req and decodes a 2xx JSON body into out.
func (b *baseProvider) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", b.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", b.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return &HTTPError{Provider: b.name, StatusCode: resp.StatusCode, Body: snippet}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &MalformedResponseError{Provider: b.name, Reason: "decode body", Err: err}
	}
	return nil
}

func newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func sourceOrEmpty(lang string) string {
	if language.IsAuto(lang) {
		return ""
	}
	return lang
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
