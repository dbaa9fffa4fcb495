package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/history"
	"horse.fit/voxlate/internal/reader"
	"horse.fit/voxlate/internal/settings"
	"horse.fit/voxlate/internal/translation"
	"horse.fit/voxlate/internal/usage"
)

const (
	headerUserID = "X-User-ID"

	defaultPageSize = 25
	maxPageSize     = 100
)

type Translator interface {
	Translate(ctx context.Context, req translation.Request) (*translation.Result, error)
	TranslateAll(ctx context.Context, req translation.Request) ([]translation.Result, error)
	DetectLanguage(ctx context.Context, text string) (*translation.Detection, error)
	AvailableProviders() []translation.ProviderInfo
	TestProvider(ctx context.Context, name, text string) (*translation.Result, error)
	TestAllProviders(ctx context.Context, text string) map[string]translation.ProviderTestResult
}

type SettingsStore interface {
	Current() settings.Settings
	Update(ctx context.Context, patch settings.Patch) (settings.Settings, error)
}

type UsageStats interface {
	Stats() usage.Stats
}

type HistoryStore interface {
	List(ctx context.Context, limit, offset int) ([]history.Entry, int, error)
	Add(ctx context.Context, entry history.Entry) (history.Entry, error)
	Clear(ctx context.Context) error
}

type PageReader interface {
	Fetch(ctx context.Context, rawURL string) (*reader.Page, error)
}

// Deps are the services the API exposes.
type Deps struct {
	Translator Translator
	Settings   SettingsStore
	Usage      UsageStats
	History    HistoryStore
	Reader     PageReader
	Bus        *events.Bus
	Latency    *translation.LatencyStats
}

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	// AdminTokenHash is the bcrypt hash admin bearer tokens are checked against.
	AdminTokenHash string
	// AllowUnauthenticatedAdmin opens admin routes when no hash is configured.
	AllowUnauthenticatedAdmin bool
	SSEHeartbeat              time.Duration
}

type Server struct {
	deps   Deps
	logger zerolog.Logger
	opts   Options
	now    func() time.Time
}

func NewServer(deps Deps, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8095
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	heartbeat := opts.SSEHeartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		opts: Options{
			Host:                      host,
			Port:                      port,
			ReadTimeout:               readTimeout,
			WriteTimeout:              writeTimeout,
			ShutdownTimeout:           shutdownTimeout,
			CORSOrigins:               origins,
			AdminTokenHash:            strings.TrimSpace(opts.AdminTokenHash),
			AllowUnauthenticatedAdmin: opts.AllowUnauthenticatedAdmin,
			SSEHeartbeat:              heartbeat,
		},
	}
}

// Handler builds the echo router with every route and middleware installed.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", headerUserID},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))
	e.Use(s.identify)

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/languages", s.handleLanguages)
	api.GET("/providers", s.handleProviders)
	api.POST("/translate", s.handleTranslate)
	api.POST("/translate/all", s.handleTranslateAll)
	api.POST("/translate/url", s.handleTranslateURL)
	api.POST("/translate/async", s.handleTranslateAsync)
	api.POST("/detect", s.handleDetect)
	api.GET("/settings", s.handleGetSettings)
	api.GET("/stats", s.handleStats)
	api.GET("/translations", s.handleListTranslations)
	api.POST("/translations", s.handleAddTranslation)
	api.GET("/events", s.handleEvents)

	admin := api.Group("", s.requireAdmin)
	admin.POST("/providers/test", s.handleTestAllProviders)
	admin.POST("/providers/:name/test", s.handleTestProvider)
	admin.PUT("/settings", s.handleUpdateSettings)
	admin.DELETE("/translations", s.handleClearTranslations)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.deps.Translator == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("voxlate api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("voxlate api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

// identify stores the X-User-ID caller identity on the request context.
func (s *Server) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := auth.WithUserID(req.Context(), req.Header.Get(headerUserID))
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.opts.AdminTokenHash == "" {
			if s.opts.AllowUnauthenticatedAdmin {
				return next(c)
			}
			return fail(c, http.StatusForbidden, "Admin access is not configured", nil)
		}
		token := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !auth.VerifyToken(token, s.opts.AdminTokenHash) {
			return fail(c, http.StatusUnauthorized, "Admin token required", nil)
		}
		return next(c)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service":   "voxlate",
		"time":      s.now().UTC(),
		"providers": len(s.deps.Translator.AvailableProviders()),
	})
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
