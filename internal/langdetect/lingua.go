package langdetect

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"

	"horse.fit/voxlate/internal/translation"
)

// Name identifies the offline detector in detection results.
const Name = "local"

const minLetters = 6

// ErrUndetermined is returned when the text is too short or ambiguous.
var ErrUndetermined = errors.New("language could not be determined")

// Detector guesses languages offline with lingua. The model is built on
// first use.
type Detector struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

func New() *Detector {
	return &Detector{}
}

func (d *Detector) DetectLanguage(ctx context.Context, text string) (*translation.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sample := strings.TrimSpace(text)
	if countLetters(sample) < minLetters {
		return nil, ErrUndetermined
	}

	values := d.get().ComputeLanguageConfidenceValues(sample)
	if len(values) == 0 {
		return nil, ErrUndetermined
	}
	best := values[0]
	code := strings.ToLower(best.Language().IsoCode639_1().String())
	if len(code) != 2 || best.Value() <= 0 {
		return nil, ErrUndetermined
	}
	return &translation.Detection{API: Name, Language: code, Confidence: best.Value()}, nil
}

func (d *Detector) get() lingua.LanguageDetector {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})
	return d.detector
}

func countLetters(text string) int {
	count := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			count++
		}
	}
	return count
}
