package translation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyText rejects blank input before any provider is called.
	ErrEmptyText = errors.New("text is required for translation")
	// ErrTargetLanguageRequired rejects requests without a usable target language.
	ErrTargetLanguageRequired = errors.New("target language is required")
	// ErrProviderUnavailable marks a provider without the credentials it needs.
	ErrProviderUnavailable = errors.New("provider not available")
	// ErrUnknownProvider marks a provider name that is not registered.
	ErrUnknownProvider = errors.New("provider not registered")
	// ErrAllProvidersFailed is matched by the error returned once the primary
	// provider and the whole fallback chain have failed.
	ErrAllProvidersFailed = errors.New("all translation providers failed")
	// ErrDetectionFailed is returned when no detector produced a result.
	ErrDetectionFailed = errors.New("language detection failed")
	// ErrEmptyTranslation marks a provider response without translated text.
	ErrEmptyTranslation = errors.New("provider returned an empty translation")
	// ErrNotImplemented marks a provider whose vendor call is not wired up.
	ErrNotImplemented = errors.New("provider not implemented")
)

// IsValidationError reports whether err rejects the request itself rather
// than a provider outcome.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyText) || errors.Is(err, ErrTargetLanguageRequired)
}

// HTTPError is a non-2xx response from a vendor endpoint.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API error: %d", DisplayName(e.Provider), e.StatusCode)
}

// MalformedResponseError is a 2xx response whose body did not have the
// expected shape.
type MalformedResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("%s API returned a malformed response", DisplayName(e.Provider))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func malformed(provider, reason string) error {
	return &MalformedResponseError{Provider: provider, Reason: reason}
}

// AttemptError is one failed provider attempt.
type AttemptError struct {
	Provider string
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ChainError reports that every attempted provider failed.
type ChainError struct {
	Attempts []*AttemptError
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return ErrAllProvidersFailed.Error()
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.Error())
	}
	return fmt.Sprintf("%s (%s)", ErrAllProvidersFailed.Error(), strings.Join(parts, "; "))
}

func (e *ChainError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt)
	}
	return errs
}
