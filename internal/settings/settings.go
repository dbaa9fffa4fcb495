package settings

import (
	"encoding/json"
	"fmt"

	"horse.fit/voxlate/internal/translation"
)

// StorageKey is the key-value entry holding persisted settings.
const StorageKey = "translation-api-settings"

// Settings is the merged provider configuration.
type Settings struct {
	PrimaryAPI     string                     `json:"primaryAPI"`
	EnableFallback bool                       `json:"enableFallback"`
	Google         translation.ProviderConfig `json:"google"`
	Microsoft      translation.ProviderConfig `json:"microsoft"`
	DeepL          translation.ProviderConfig `json:"deepl"`
	Amazon         translation.ProviderConfig `json:"amazon"`
	LibreTranslate translation.ProviderConfig `json:"libretranslate"`
	MyMemory       translation.ProviderConfig `json:"mymemory"`
}

// Patch is a partial settings document. Each present top-level key replaces
// the current value wholesale.
type Patch map[string]json.RawMessage

// Defaults returns the built-in settings: google primary with fallback enabled.
func Defaults() Settings {
	return Settings{
		PrimaryAPI:     translation.DefaultPrimaryProvider,
		EnableFallback: true,
		Amazon:         translation.ProviderConfig{Region: translation.DefaultAmazonRegion},
	}
}

// Preferences extracts the orchestrator selection settings.
func (s Settings) Preferences() translation.Preferences {
	return translation.Preferences{PrimaryAPI: s.PrimaryAPI, EnableFallback: s.EnableFallback}
}

// Providers returns the per-provider configuration keyed by provider name.
func (s Settings) Providers() map[string]translation.ProviderConfig {
	return map[string]translation.ProviderConfig{
		translation.ProviderGoogle:         s.Google,
		translation.ProviderMicrosoft:      s.Microsoft,
		translation.ProviderDeepL:          s.DeepL,
		translation.ProviderAmazon:         s.Amazon,
		translation.ProviderLibreTranslate: s.LibreTranslate,
		translation.ProviderMyMemory:       s.MyMemory,
	}
}

// Redacted masks every credential.
func (s Settings) Redacted() Settings {
	s.Google = s.Google.Redacted()
	s.Microsoft = s.Microsoft.Redacted()
	s.DeepL = s.DeepL.Redacted()
	s.Amazon = s.Amazon.Redacted()
	s.LibreTranslate = s.LibreTranslate.Redacted()
	s.MyMemory = s.MyMemory.Redacted()
	return s
}

func (s Settings) keepMaskedSecrets(current Settings) Settings {
	s.Google = s.Google.KeepMasked(current.Google)
	s.Microsoft = s.Microsoft.KeepMasked(current.Microsoft)
	s.DeepL = s.DeepL.KeepMasked(current.DeepL)
	s.Amazon = s.Amazon.KeepMasked(current.Amazon)
	s.LibreTranslate = s.LibreTranslate.KeepMasked(current.LibreTranslate)
	s.MyMemory = s.MyMemory.KeepMasked(current.MyMemory)
	return s
}

// Merge applies patch over base at the top level only.
func Merge(base Settings, patch Patch) (Settings, error) {
	if len(patch) == 0 {
		return base, nil
	}
	encoded, err := json.Marshal(base)
	if err != nil {
		return Settings{}, fmt.Errorf("encode base settings: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return Settings{}, fmt.Errorf("decode base settings: %w", err)
	}
	for key, value := range patch {
		fields[key] = value
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return Settings{}, fmt.Errorf("encode merged settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(merged, &out); err != nil {
		return Settings{}, fmt.Errorf("decode merged settings: %w", err)
	}
	return out, nil
}
