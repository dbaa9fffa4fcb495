package translation

import (
	"context"
	"strings"
)

const (
	ProviderGoogle         = "google"
	ProviderMicrosoft      = "microsoft"
	ProviderDeepL          = "deepl"
	ProviderAmazon         = "amazon"
	ProviderLibreTranslate = "libretranslate"
	ProviderMyMemory       = "mymemory"
)

// DefaultPrimaryProvider is used when no primary provider is configured.
const DefaultPrimaryProvider = ProviderGoogle

// FallbackChain is the fixed order tried after the primary provider fails.
var FallbackChain = []string{
	ProviderGoogle,
	ProviderMicrosoft,
	ProviderDeepL,
	ProviderLibreTranslate,
	ProviderMyMemory,
}

// Provider translates free-form text through one vendor API.
type Provider interface {
	Name() string
	// Available reports whether the provider holds credentials or is a
	// public endpoint that needs none.
	Available() bool
	Translate(ctx context.Context, req Request) (*Result, error)
}

// Detector is the optional language-detection capability of a provider.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (*Detection, error)
}

// Configurable providers accept credentials from the settings store.
type Configurable interface {
	Configure(cfg ProviderConfig)
}

// Request describes one translation request.
type Request struct {
	Text       string
	SourceLang string // language code or "auto"
	TargetLang string
	Options    map[string]string
	UserID     string
}

// Result is a translation produced by a provider. Confidence is
// provider-relative and is not comparable across providers.
type Result struct {
	Success          bool     `json:"success"`
	Translation      string   `json:"translation"`
	Confidence       float64  `json:"confidence"`
	API              string   `json:"api"`
	DetectedLanguage string   `json:"detectedLanguage,omitempty"`
	Alternatives     []string `json:"alternatives"`
}

// Detection is one provider's language guess.
type Detection struct {
	API        string  `json:"api"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// ProviderConfig carries per-provider credentials and endpoint overrides.
type ProviderConfig struct {
	APIKey          string `json:"apiKey,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// Redacted returns a copy with secrets masked for display.
func (c ProviderConfig) Redacted() ProviderConfig {
	c.APIKey = maskSecret(c.APIKey)
	c.SecretAccessKey = maskSecret(c.SecretAccessKey)
	c.AccessKeyID = maskSecret(c.AccessKeyID)
	return c
}

// KeepMasked returns c with every masked secret replaced by the value from
// current, so a redacted config written back does not overwrite credentials.
func (c ProviderConfig) KeepMasked(current ProviderConfig) ProviderConfig {
	if IsMaskedSecret(c.APIKey) {
		c.APIKey = current.APIKey
	}
	if IsMaskedSecret(c.AccessKeyID) {
		c.AccessKeyID = current.AccessKeyID
	}
	if IsMaskedSecret(c.SecretAccessKey) {
		c.SecretAccessKey = current.SecretAccessKey
	}
	return c
}

// IsMaskedSecret reports whether secret is in the form produced by Redacted.
func IsMaskedSecret(secret string) bool {
	return strings.HasPrefix(secret, secretMask)
}

const secretMask = "****"

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	runes := []rune(secret)
	if len(runes) <= 4 {
		return secretMask
	}
	return secretMask + string(runes[len(runes)-4:])
}
