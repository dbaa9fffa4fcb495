package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"horse.fit/voxlate/internal/language"
)

const (
	DefaultMicrosoftEndpoint = "https://api.cognitive.microsofttranslator.com"

	microsoftAPIVersion        = "3.0"
	microsoftDefaultConfidence = 0.8
)

// MicrosoftProvider calls Microsoft Translator v3. It is available once an
// API key is configured.
type MicrosoftProvider struct {
	baseProvider
}

func NewMicrosoftProvider(client *http.Client, cfg ProviderConfig) *MicrosoftProvider {
	return &MicrosoftProvider{baseProvider: newBaseProvider(ProviderMicrosoft, client, cfg)}
}

func (p *MicrosoftProvider) Available() bool {
	return strings.TrimSpace(p.config().APIKey) != ""
}

type microsoftText struct {
	Text string `json:"Text"`
}

type microsoftTranslateResponse []struct {
	DetectedLanguage *struct {
		Language string  `json:"language"`
		Score    float64 `json:"score"`
	} `json:"detectedLanguage"`
	Translations []struct {
		Text       string   `json:"text"`
		To         string   `json:"to"`
		Confidence *float64 `json:"confidence"`
	} `json:"translations"`
}

type microsoftDetectResponse []struct {
	Language string  `json:"language"`
	Score    float64 `json:"score"`
}

func (p *MicrosoftProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	params := url.Values{}
	params.Set("api-version", microsoftAPIVersion)
	if from := sourceOrEmpty(req.SourceLang); from != "" {
		params.Set("from", from)
	}
	params.Set("to", req.TargetLang)

	var payload microsoftTranslateResponse
	if err := p.post(ctx, "/translate", params, req.Text, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 || len(payload[0].Translations) == 0 {
		return nil, malformed(p.Name(), "missing translations")
	}

	first := payload[0].Translations[0]
	confidence := microsoftDefaultConfidence
	if first.Confidence != nil && *first.Confidence > 0 {
		confidence = *first.Confidence
	}
	detected := language.NormalizeSource(req.SourceLang)
	if payload[0].DetectedLanguage != nil && payload[0].DetectedLanguage.Language != "" {
		detected = language.NormalizeTag(payload[0].DetectedLanguage.Language)
	}
	return &Result{
		Success:          true,
		Translation:      first.Text,
		Confidence:       confidence,
		API:              p.Name(),
		DetectedLanguage: detected,
		Alternatives:     []string{},
	}, nil
}

func (p *MicrosoftProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	params := url.Values{}
	params.Set("api-version", microsoftAPIVersion)

	var payload microsoftDetectResponse
	if err := p.post(ctx, "/detect", params, text, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 || payload[0].Language == "" {
		return nil, malformed(p.Name(), "missing detection")
	}
	return &Detection{
		API:        p.Name(),
		Language:   language.NormalizeTag(payload[0].Language),
		Confidence: payload[0].Score,
	}, nil
}

func (p *MicrosoftProvider) post(ctx context.Context, path string, params url.Values, text string, out any) error {
	cfg := p.config()
	body, err := json.Marshal([]microsoftText{{Text: text}})
	if err != nil {
		return fmt.Errorf("marshal microsoft request: %w", err)
	}

	target := p.endpoint(DefaultMicrosoftEndpoint) + path + "?" + params.Encode()
	httpReq, err := newRequest(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", cfg.APIKey)
	if region := strings.TrimSpace(cfg.Region); region != "" {
		httpReq.Header.Set("Ocp-Apim-Subscription-Region", region)
	}
	return p.do(httpReq, out)
}
