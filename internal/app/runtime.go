package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/voxlate/internal/cli"
	"horse.fit/voxlate/internal/config"
	"horse.fit/voxlate/internal/db"
	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/history"
	"horse.fit/voxlate/internal/kvstore"
	"horse.fit/voxlate/internal/langdetect"
	"horse.fit/voxlate/internal/logging"
	"horse.fit/voxlate/internal/reader"
	"horse.fit/voxlate/internal/settings"
	"horse.fit/voxlate/internal/translation"
	"horse.fit/voxlate/internal/usage"
)

const providerHTTPTimeout = 30 * time.Second

// runtime holds every wired service of one process.
type runtime struct {
	cfg          *config.Config
	logger       zerolog.Logger
	kv           kvstore.Store
	pool         *db.Pool
	bus          *events.Bus
	settings     *settings.Store
	usage        *usage.Logger
	history      *history.Store
	latency      *translation.LatencyStats
	registry     *translation.Registry
	orchestrator *translation.Orchestrator
	reader       *reader.Reader

	unsubscribe []func()
}

type runtimeOptions struct {
	// HTTPClient is shared by every provider adapter; nil uses a default client.
	HTTPClient *http.Client
	// KV replaces the configured store backend.
	KV kvstore.Store
}

// loadConfig loads the env file, the configuration and the logger.
func loadConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewWithWriter(cfg.Environment, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// buildRuntime wires the store, bus, settings, usage logger, history and the
// translation orchestrator. Persisted settings are applied before it returns.
func buildRuntime(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		kv:      opts.KV,
		bus:     events.NewBus(logger.With().Str("component", "events").Logger()),
		latency: translation.NewLatencyStats(),
	}

	if rt.kv == nil {
		kv, pool, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.kv = kv
		rt.pool = pool
	}

	rt.settings = settings.NewStore(rt.kv, rt.bus, logger.With().Str("component", "settings").Logger(), settingsDefaults(cfg))
	current, err := rt.settings.Load(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	rt.usage = usage.NewLogger(rt.kv, usage.NewLogSink(logger), logger.With().Str("component", "usage").Logger(), cfg.UsageRecentLimit)
	if err := rt.usage.Load(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("load usage stats: %w", err)
	}
	rt.history = history.NewStore(rt.kv, logger.With().Str("component", "history").Logger(), cfg.HistoryLimit)

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: providerHTTPTimeout}
	}
	rt.registry, err = newRegistry(client, logger, rt.latency)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.orchestrator = translation.NewOrchestrator(rt.registry, translation.OrchestratorOptions{
		Bus:             rt.bus,
		Usage:           rt.usage,
		Logger:          logger.With().Str("component", "orchestrator").Logger(),
		Preferences:     current.Preferences(),
		ProviderTimeout: cfg.ProviderTimeout,
	})
	rt.orchestrator.Apply(current.Preferences(), current.Providers())
	if cfg.LocalDetection {
		rt.orchestrator.AddDetector(langdetect.Name, langdetect.New())
	}

	rt.unsubscribe = append(rt.unsubscribe,
		events.Subscribe(rt.bus, settings.TopicSettingsChanged, func(next settings.Settings) {
			rt.orchestrator.Apply(next.Preferences(), next.Providers())
		}),
		rt.history.Subscribe(rt.bus),
	)
	rt.reader = reader.New(reader.Options{})
	return rt, nil
}

// listen bridges request events to the orchestrator until ctx is done.
func (rt *runtime) listen(ctx context.Context) {
	rt.unsubscribe = append(rt.unsubscribe, rt.orchestrator.ListenForRequests(ctx))
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.unsubscribe) - 1; i >= 0; i-- {
		rt.unsubscribe[i]()
	}
	rt.unsubscribe = nil
	if rt.pool != nil {
		if err := rt.pool.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("close database pool failed")
		}
		rt.pool = nil
	}
}

func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, *db.Pool, error) {
	switch cfg.StoreBackendName() {
	case config.StoreBackendPostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := db.NewPool(dbCtx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return kvstore.NewPostgresStore(pool), pool, nil
	default:
		return kvstore.NewMemoryStore(), nil, nil
	}
}

// newRegistry registers every adapter in fallback-chain order, followed by
// amazon, each wrapped with the timing middleware.
func newRegistry(client *http.Client, logger zerolog.Logger, latency *translation.LatencyStats) (*translation.Registry, error) {
	timing := translation.WithTiming(logger.With().Str("component", "providers").Logger(), latency)
	providers := []translation.Provider{
		translation.NewGoogleProvider(client, translation.ProviderConfig{}),
		translation.NewMicrosoftProvider(client, translation.ProviderConfig{}),
		translation.NewDeepLProvider(client, translation.ProviderConfig{}),
		translation.NewLibreTranslateProvider(client, translation.ProviderConfig{}),
		translation.NewMyMemoryProvider(client, translation.ProviderConfig{}),
		translation.NewAmazonProvider(client, translation.ProviderConfig{}),
	}

	registry := translation.NewRegistry()
	for _, provider := range providers {
		if err := registry.Register(translation.Chain(provider, timing)); err != nil {
			return nil, fmt.Errorf("register provider %s: %w", provider.Name(), err)
		}
	}
	return registry, nil
}

// settingsDefaults seeds the built-in defaults with credentials and
// preferences from the environment.
func settingsDefaults(cfg *config.Config) settings.Settings {
	defaults := settings.Defaults()
	if cfg == nil {
		return defaults
	}
	if cfg.PrimaryProvider != "" {
		defaults.PrimaryAPI = cfg.PrimaryProvider
	}
	defaults.EnableFallback = cfg.EnableFallback
	defaults.Google.APIKey = cfg.GoogleAPIKey
	defaults.Microsoft.APIKey = cfg.MicrosoftAPIKey
	defaults.Microsoft.Region = cfg.MicrosoftRegion
	defaults.DeepL.APIKey = cfg.DeepLAPIKey
	defaults.Amazon.AccessKeyID = cfg.AmazonAccessKeyID
	defaults.Amazon.SecretAccessKey = cfg.AmazonSecretAccessKey
	if cfg.AmazonRegion != "" {
		defaults.Amazon.Region = cfg.AmazonRegion
	}
	defaults.LibreTranslate.APIKey = cfg.LibreTranslateAPIKey
	defaults.LibreTranslate.Endpoint = cfg.LibreTranslateEndpoint
	defaults.MyMemory.APIKey = cfg.MyMemoryAPIKey
	return defaults
}
