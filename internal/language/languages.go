package language

import (
	"sort"
	"strings"
)

type Option struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Native string `json:"native,omitempty"`
}

type languageLabel struct {
	english string
	native  string
}

var languageLabels = map[string]languageLabel{
	"ar": {english: "Arabic", native: "العربية"},
	"de": {english: "German", native: "Deutsch"},
	"en": {english: "English", native: "English"},
	"es": {english: "Spanish", native: "Español"},
	"fa": {english: "Persian", native: "فارسی"},
	"fr": {english: "French", native: "Français"},
	"hi": {english: "Hindi", native: "हिन्दी"},
	"it": {english: "Italian", native: "Italiano"},
	"ja": {english: "Japanese", native: "日本語"},
	"ko": {english: "Korean", native: "한국어"},
	"nl": {english: "Dutch", native: "Nederlands"},
	"pl": {english: "Polish", native: "Polski"},
	"pt": {english: "Portuguese", native: "Português"},
	"ru": {english: "Russian", native: "Русский"},
	"sv": {english: "Swedish", native: "Svenska"},
	"tr": {english: "Turkish", native: "Türkçe"},
	"uk": {english: "Ukrainian", native: "Українська"},
	"ur": {english: "Urdu", native: "اردو"},
	"zh": {english: "Chinese", native: "中文"},
}

// Codes returns the supported language codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(languageLabels))
	for code := range languageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Options returns the supported languages with English and native labels.
func Options() []Option {
	codes := Codes()
	options := make([]Option, 0, len(codes))
	for _, code := range codes {
		labels := languageLabels[code]
		options = append(options, Option{
			Code:   code,
			Label:  labels.english,
			Native: labels.native,
		})
	}
	return options
}

// Label returns the English name for code, or the upper-cased code when unknown.
func Label(code string) string {
	normalized := NormalizeCode(code)
	if labels, ok := languageLabels[normalized]; ok {
		return labels.english
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
