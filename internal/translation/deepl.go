package translation

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"horse.fit/voxlate/internal/language"
)

const (
	DefaultDeepLFreeEndpoint = "https://api-free.deepl.com/v2/translate"
	DefaultDeepLProEndpoint  = "https://api.deepl.com/v2/translate"

	deeplConfidence = 0.95
)

// DeepLProvider calls the DeepL v2 API. Keys ending in ":fx" belong to the
// free tier and use its dedicated host.
type DeepLProvider struct {
	baseProvider
}

func NewDeepLProvider(client *http.Client, cfg ProviderConfig) *DeepLProvider {
	return &DeepLProvider{baseProvider: newBaseProvider(ProviderDeepL, client, cfg)}
}

func (p *DeepLProvider) Available() bool {
	return strings.TrimSpace(p.config().APIKey) != ""
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

func (p *DeepLProvider) Translate(ctx context.Context, req Request) (*Result, error) {
	cfg := p.config()
	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("target_lang", strings.ToUpper(req.TargetLang))
	if source := sourceOrEmpty(req.SourceLang); source != "" {
		form.Set("source_lang", strings.ToUpper(language.NormalizeCode(source)))
	}

	httpReq, err := newRequest(ctx, http.MethodPost, p.endpoint(deeplEndpointForKey(cfg.APIKey)), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+cfg.APIKey)

	var payload deeplResponse
	if err := p.do(httpReq, &payload); err != nil {
		return nil, err
	}
	if len(payload.Translations) == 0 {
		return nil, malformed(p.Name(), "missing translations")
	}

	first := payload.Translations[0]
	detected := language.NormalizeTag(first.DetectedSourceLanguage)
	if detected == "" {
		detected = language.NormalizeSource(req.SourceLang)
	}
	return &Result{
		Success:          true,
		Translation:      first.Text,
		Confidence:       deeplConfidence,
		API:              p.Name(),
		DetectedLanguage: detected,
		Alternatives:     []string{},
	}, nil
}

func deeplEndpointForKey(apiKey string) string {
	if strings.HasSuffix(strings.TrimSpace(apiKey), ":fx") {
		return DefaultDeepLFreeEndpoint
	}
	return DefaultDeepLProEndpoint
}
