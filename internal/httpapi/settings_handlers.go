package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/history"
	"horse.fit/voxlate/internal/settings"
	"horse.fit/voxlate/internal/translation"
)

const maxSettingsBodyBytes = 64 * 1024

type addTranslationRequest struct {
	Text        string  `json:"text"`
	Translation string  `json:"translation"`
	SourceLang  string  `json:"source_lang"`
	TargetLang  string  `json:"target_lang"`
	API         string  `json:"api"`
	Confidence  float64 `json:"confidence"`
}

func (s *Server) handleGetSettings(c echo.Context) error {
	if s.deps.Settings == nil {
		return fail(c, http.StatusNotImplemented, "Settings are not enabled", nil)
	}
	return success(c, s.deps.Settings.Current().Redacted())
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	if s.deps.Settings == nil {
		return fail(c, http.StatusNotImplemented, "Settings are not enabled", nil)
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSettingsBodyBytes))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	patch, err := settings.ValidatePatch(raw)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidPatch) {
			return failValidation(c, map[string]string{"body": err.Error()})
		}
		s.logger.Error().Err(err).Msg("validate settings patch failed")
		return internalError(c, "Failed to validate settings")
	}

	updated, err := s.deps.Settings.Update(c.Request().Context(), patch)
	if err != nil {
		s.logger.Error().Err(err).Msg("update settings failed")
		return internalError(c, "Failed to update settings")
	}
	return success(c, updated.Redacted())
}

func (s *Server) handleStats(c echo.Context) error {
	data := map[string]any{}
	if s.deps.Usage != nil {
		data["usage"] = s.deps.Usage.Stats()
	}
	latency := s.deps.Latency.Snapshot()
	if latency == nil {
		latency = []translation.LatencySnapshot{}
	}
	data["latency"] = latency
	return success(c, data)
}

func (s *Server) handleListTranslations(c echo.Context) error {
	if s.deps.History == nil {
		return fail(c, http.StatusNotImplemented, "History is not enabled", nil)
	}

	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}

	items, total, err := s.deps.History.List(c.Request().Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("list translations failed")
		return internalError(c, "Failed to list translations")
	}
	if items == nil {
		items = []history.Entry{}
	}
	return success(c, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleAddTranslation(c echo.Context) error {
	if s.deps.History == nil {
		return fail(c, http.StatusNotImplemented, "History is not enabled", nil)
	}

	var req addTranslationRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}
	fields := map[string]string{}
	if strings.TrimSpace(req.Text) == "" {
		fields["text"] = "is required"
	}
	if strings.TrimSpace(req.Translation) == "" {
		fields["translation"] = "is required"
	}
	if strings.TrimSpace(req.TargetLang) == "" {
		fields["target_lang"] = "is required"
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		fields["confidence"] = "must be between 0 and 1"
	}
	if len(fields) > 0 {
		return failValidation(c, fields)
	}

	entry, err := s.deps.History.Add(c.Request().Context(), history.Entry{
		Text:        req.Text,
		Translation: req.Translation,
		SourceLang:  req.SourceLang,
		TargetLang:  req.TargetLang,
		API:         req.API,
		Confidence:  req.Confidence,
		UserID:      auth.UserID(c.Request().Context()),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("add translation failed")
		return internalError(c, "Failed to save translation")
	}
	return successWithStatus(c, http.StatusCreated, entry)
}

func (s *Server) handleClearTranslations(c echo.Context) error {
	if s.deps.History == nil {
		return fail(c, http.StatusNotImplemented, "History is not enabled", nil)
	}
	if err := s.deps.History.Clear(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear translations failed")
		return internalError(c, "Failed to clear translations")
	}
	return success(c, map[string]bool{"cleared": true})
}
