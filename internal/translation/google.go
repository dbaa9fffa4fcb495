package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"horse.fit/voxlate/internal/language"
)

const (
	DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

	googleConfidence       = 0.9
	googleDetectConfidence = 0.8
)

// GoogleProvider calls the public gtx endpoint of Google Translate. It needs
// no credentials and is always available.
type GoogleProvider struct {
	baseProvider
}

func NewGoogleProvider(client *http.Client, cfg ProviderConfig) *GoogleProvider {
	return &GoogleProvider{baseProvider: newBaseProvider(ProviderGoogle, client, cfg)}
}

func (p *GoogleProvider) Available() bool {
	return true
}

func (p *GoogleProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	source := language.NormalizeSource(req.SourceLang)
	payload, err := p.query(ctx, req.Text, source, req.TargetLang)
	if err != nil {
		return nil, err
	}

	translated, err := googleTranslation(payload)
	if err != nil {
		return nil, err
	}
	detected := googleDetectedLanguage(payload)
	if detected == "" {
		detected = source
	}
	return &Result{
		Success:          true,
		Translation:      translated,
		Confidence:       googleConfidence,
		API:              p.Name(),
		DetectedLanguage: detected,
		Alternatives:     []string{},
	}, nil
}

func (p *GoogleProvider) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	payload, err := p.query(ctx, text, language.Auto, "en")
	if err != nil {
		return nil, err
	}
	detected := googleDetectedLanguage(payload)
	if detected == "" {
		return nil, malformed(p.Name(), "missing detected language")
	}
	return &Detection{API: p.Name(), Language: detected, Confidence: googleDetectConfidence}, nil
}

func (p *GoogleProvider) query(ctx context.Context, text, source, target string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	httpReq, err := newRequest(ctx, http.MethodGet, p.endpoint(DefaultGoogleEndpoint)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var payload []json.RawMessage
	if err := p.do(httpReq, &payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, malformed(p.Name(), "empty payload")
	}
	return payload, nil
}

// googleTranslation joins the translated segments found in payload[0].
func googleTranslation(payload []json.RawMessage) (string, error) {
	var segments []json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil || len(segments) == 0 {
		return "", malformed(ProviderGoogle, "missing translation segments")
	}

	var builder strings.Builder
	for _, raw := range segments {
		var segment []json.RawMessage
		if err := json.Unmarshal(raw, &segment); err != nil || len(segment) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(segment[0], &piece); err != nil {
			continue
		}
		builder.WriteString(piece)
	}
	if builder.Len() == 0 {
		return "", malformed(ProviderGoogle, "missing translated text")
	}
	return builder.String(), nil
}

func googleDetectedLanguage(payload []json.RawMessage) string {
	if len(payload) < 3 {
		return ""
	}
	var detected string
	if err := json.Unmarshal(payload[2], &detected); err != nil {
		return ""
	}
	return language.NormalizeTag(detected)
}
