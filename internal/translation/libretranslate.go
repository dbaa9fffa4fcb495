package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"horse.fit/voxlate/internal/language"
)

const (
	DefaultLibreTranslateEndpoint = "https://libretranslate.de/translate"

	libreTranslateConfidence = 0.7
)

// LibreTranslateProvider calls a LibreTranslate instance. Public instances
// need no key, so the provider is always available.
type LibreTranslateProvider struct {
	baseProvider
}

func NewLibreTranslateProvider(client *http.Client, cfg ProviderConfig) *LibreTranslateProvider {
	return &LibreTranslateProvider{baseProvider: newBaseProvider(ProviderLibreTranslate, client, cfg)}
}

func (p *LibreTranslateProvider) Available() bool {
	return true
}

type libreTranslateRequest struct {
	Q            string `json:"q"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Format       string `json:"format"`
	APIKey       string `json:"api_key,omitempty"`
	Alternatives int    `json:"alternatives,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText   string          `json:"translatedText"`
	DetectedLanguage json.RawMessage `json:"detectedLanguage"`
	Alternatives     []string        `json:"alternatives"`
}

func (p *LibreTranslateProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	source := language.NormalizeSource(req.SourceLang)
	body := libreTranslateRequest{
		Q:      req.Text,
		Source: source,
		Target: req.TargetLang,
		Format: "text",
		APIKey: strings.TrimSpace(p.config().APIKey),
	}
	if raw := strings.TrimSpace(req.Options["alternatives"]); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			body.Alternatives = n
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal libretranslate request: %w", err)
	}
	httpReq, err := newRequest(ctx, http.MethodPost, p.endpoint(DefaultLibreTranslateEndpoint), bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var payload libreTranslateResponse
	if err := p.do(httpReq, &payload); err != nil {
		return nil, err
	}

	detected := libreDetectedLanguage(payload.DetectedLanguage)
	if detected == "" {
		detected = source
	}
	alternatives := payload.Alternatives
	if alternatives == nil {
		alternatives = []string{}
	}
	return &Result{
		Success:          true,
		Translation:      payload.TranslatedText,
		Confidence:       libreTranslateConfidence,
		API:              p.Name(),
		DetectedLanguage: detected,
		Alternatives:     alternatives,
	}, nil
}

// libreDetectedLanguage accepts both the legacy string form and the
// {"language": ..., "confidence": ...} object newer servers return.
func libreDetectedLanguage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return language.NormalizeTag(code)
	}
	var detected struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal(raw, &detected); err == nil {
		return language.NormalizeTag(detected.Language)
	}
	return ""
}
