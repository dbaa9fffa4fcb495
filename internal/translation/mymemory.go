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
	DefaultMyMemoryEndpoint = "https://api.mymemory.translated.net/get"

	myMemoryDefaultConfidence = 0.6
	myMemoryAutoSource        = "autodetect"
)

// MyMemoryProvider calls the MyMemory translation memory API. The key is
// optional and only raises the daily quota.
type MyMemoryProvider struct {
	baseProvider
}

func NewMyMemoryProvider(client *http.Client, cfg ProviderConfig) *MyMemoryProvider {
	return &MyMemoryProvider{baseProvider: newBaseProvider(ProviderMyMemory, client, cfg)}
}

func (p *MyMemoryProvider) Available() bool {
	return true
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText   string      `json:"translatedText"`
		Match            json.Number `json:"match"`
		DetectedLanguage string      `json:"detectedLanguage"`
	} `json:"responseData"`
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
	Matches         []struct {
		Translation string `json:"translation"`
	} `json:"matches"`
}

func (p *MyMemoryProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	source := language.NormalizeSource(req.SourceLang)
	pairSource := source
	if source == language.Auto {
		pairSource = myMemoryAutoSource
	}

	params := url.Values{}
	params.Set("q", req.Text)
	params.Set("langpair", pairSource+"|"+req.TargetLang)
	if key := strings.TrimSpace(p.config().APIKey); key != "" {
		params.Set("key", key)
	}

	httpReq, err := newRequest(ctx, http.MethodGet, p.endpoint(DefaultMyMemoryEndpoint)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var payload myMemoryResponse
	if err := p.do(httpReq, &payload); err != nil {
		return nil, err
	}
	if status, err := payload.ResponseStatus.Int64(); err == nil && (status < 200 || status >= 300) {
		return nil, &HTTPError{Provider: p.Name(), StatusCode: int(status), Body: payload.ResponseDetails}
	}

	translated := strings.TrimSpace(payload.ResponseData.TranslatedText)
	confidence := myMemoryDefaultConfidence
	if match, err := payload.ResponseData.Match.Float64(); err == nil && match > 0 {
		confidence = match
	}
	detected := language.NormalizeTag(payload.ResponseData.DetectedLanguage)
	if detected == "" {
		detected = source
	}

	seen := map[string]struct{}{strings.ToLower(translated): {}}
	alternatives := []string{}
	for _, match := range payload.Matches {
		candidate := strings.TrimSpace(match.Translation)
		key := strings.ToLower(candidate)
		if candidate == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		alternatives = append(alternatives, candidate)
	}

	return &Result{
		Success:          true,
		Translation:      translated,
		Confidence:       confidence,
		API:              p.Name(),
		DetectedLanguage: detected,
		Alternatives:     alternatives,
	}, nil
}
