package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/language"
	"horse.fit/voxlate/internal/reader"
	"horse.fit/voxlate/internal/translation"
)

type translateRequest struct {
	Text       string            `json:"text"`
	SourceLang string            `json:"source_lang"`
	TargetLang string            `json:"target_lang"`
	Options    map[string]string `json:"options"`
}

type translateURLRequest struct {
	URL        string `json:"url"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type detectRequest struct {
	Text string `json:"text"`
}

type testProviderRequest struct {
	Text string `json:"text"`
}

type attemptFailure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type translateURLResponse struct {
	Page   pageSummary         `json:"page"`
	Result *translation.Result `json:"result"`
}

type pageSummary struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

func (s *Server) handleTranslate(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	result, err := s.deps.Translator.Translate(c.Request().Context(), s.translationRequest(c, req.Text, req.SourceLang, req.TargetLang, req.Options))
	if err != nil {
		return s.translateError(c, err)
	}
	return success(c, result)
}

func (s *Server) handleTranslateAll(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	results, err := s.deps.Translator.TranslateAll(c.Request().Context(), s.translationRequest(c, req.Text, req.SourceLang, req.TargetLang, req.Options))
	if err != nil {
		return s.translateError(c, err)
	}
	if results == nil {
		results = []translation.Result{}
	}
	return success(c, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// handleTranslateAsync queues a translation on the event bus. The outcome is
// published as translationResult or translationError and can be followed on
// /events.
func (s *Server) handleTranslateAsync(c echo.Context) error {
	if s.deps.Bus == nil {
		return fail(c, http.StatusNotImplemented, "Event bus is not enabled", nil)
	}

	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Text) == "" {
		fields["text"] = "is required"
	}
	if strings.TrimSpace(req.TargetLang) == "" {
		fields["target_lang"] = "is required"
	}
	if len(fields) > 0 {
		return failValidation(c, fields)
	}

	event := translation.RequestedEvent{
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		UserID:     auth.UserID(c.Request().Context()),
	}
	go events.Publish(s.deps.Bus, translation.TopicTranslationRequested, event)

	return successWithStatus(c, http.StatusAccepted, map[string]string{
		"result_topic": translation.TopicTranslationResult.Name(),
		"error_topic":  translation.TopicTranslationError.Name(),
	})
}

func (s *Server) handleTranslateURL(c echo.Context) error {
	if s.deps.Reader == nil {
		return fail(c, http.StatusNotImplemented, "URL translation is not enabled", nil)
	}

	var req translateURLRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	if strings.TrimSpace(req.TargetLang) == "" {
		return failValidation(c, map[string]string{"target_lang": "is required"})
	}

	ctx := c.Request().Context()
	page, err := s.deps.Reader.Fetch(ctx, req.URL)
	if err != nil {
		if errors.Is(err, reader.ErrInvalidURL) {
			return failValidation(c, map[string]string{"url": err.Error()})
		}
		s.logger.Warn().Err(err).Str("url", req.URL).Msg("fetch page for translation failed")
		return fail(c, http.StatusUnprocessableEntity, "Could not read page", map[string]string{"url": err.Error()})
	}

	result, err := s.deps.Translator.Translate(ctx, s.translationRequest(c, page.Text, req.SourceLang, req.TargetLang, nil))
	if err != nil {
		return s.translateError(c, err)
	}
	return success(c, translateURLResponse{
		Page: pageSummary{
			URL:       page.URL,
			Title:     page.Title,
			Chars:     page.Chars,
			Truncated: page.Truncated,
		},
		Result: result,
	})
}

func (s *Server) handleDetect(c echo.Context) error {
	var req detectRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return failValidation(c, map[string]string{"text": "is required"})
	}

	detection, err := s.deps.Translator.DetectLanguage(c.Request().Context(), req.Text)
	if err != nil {
		if errors.Is(err, translation.ErrDetectionFailed) {
			return fail(c, http.StatusUnprocessableEntity, "Language could not be detected", nil)
		}
		s.logger.Error().Err(err).Msg("detect language failed")
		return internalError(c, "Failed to detect language")
	}
	return success(c, detection)
}

func (s *Server) handleProviders(c echo.Context) error {
	providers := s.deps.Translator.AvailableProviders()
	if providers == nil {
		providers = []translation.ProviderInfo{}
	}
	return success(c, map[string]any{
		"providers": providers,
		"fallback":  translation.FallbackChain,
	})
}

func (s *Server) handleTestProvider(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	text := s.testText(c)

	result, err := s.deps.Translator.TestProvider(c.Request().Context(), name, text)
	switch {
	case err == nil:
		return success(c, result)
	case errors.Is(err, translation.ErrUnknownProvider):
		return failNotFound(c, "Unknown provider")
	case errors.Is(err, translation.ErrProviderUnavailable):
		return fail(c, http.StatusConflict, "Provider is not configured", map[string]string{"provider": name})
	default:
		return upstreamError(c, "Provider test failed", []attemptFailure{{Provider: name, Error: err.Error()}})
	}
}

func (s *Server) handleTestAllProviders(c echo.Context) error {
	results := s.deps.Translator.TestAllProviders(c.Request().Context(), s.testText(c))
	return success(c, results)
}

func (s *Server) handleLanguages(c echo.Context) error {
	return success(c, map[string]any{
		"languages": language.Options(),
	})
}

func (s *Server) translationRequest(c echo.Context, text, source, target string, options map[string]string) translation.Request {
	return translation.Request{
		Text:       text,
		SourceLang: source,
		TargetLang: target,
		Options:    options,
		UserID:     auth.UserID(c.Request().Context()),
	}
}

func (s *Server) testText(c echo.Context) string {
	var req testProviderRequest
	if c.Request().ContentLength != 0 {
		_ = c.Bind(&req)
	}
	if strings.TrimSpace(req.Text) == "" {
		return translation.DefaultTestText
	}
	return req.Text
}

func (s *Server) translateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, translation.ErrEmptyText):
		return failValidation(c, map[string]string{"text": "is required"})
	case errors.Is(err, translation.ErrTargetLanguageRequired):
		return failValidation(c, map[string]string{"target_lang": "is required"})
	case translation.IsValidationError(err):
		return failValidation(c, map[string]string{"request": err.Error()})
	}

	var chainErr *translation.ChainError
	if errors.As(err, &chainErr) {
		failures := make([]attemptFailure, 0, len(chainErr.Attempts))
		for _, attempt := range chainErr.Attempts {
			failures = append(failures, attemptFailure{Provider: attempt.Provider, Error: attempt.Err.Error()})
		}
		return upstreamError(c, translation.ErrAllProvidersFailed.Error(), failures)
	}

	var attemptErr *translation.AttemptError
	if errors.As(err, &attemptErr) {
		return upstreamError(c, "Translation provider failed", []attemptFailure{{
			Provider: attemptErr.Provider,
			Error:    attemptErr.Err.Error(),
		}})
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fail(c, http.StatusRequestTimeout, "Request canceled", nil)
	}

	s.logger.Error().Err(err).Msg("translate failed")
	return internalError(c, "Failed to translate text")
}
