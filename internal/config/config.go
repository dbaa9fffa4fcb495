package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL" default:""`
	DBMinConns   int32  `envconfig:"VOX_DB_MIN_CONNS" default:"1"`
	DBMaxConns   int32  `envconfig:"VOX_DB_MAX_CONNS" default:"8"`

	PrimaryProvider string        `envconfig:"PRIMARY_PROVIDER" default:"google"`
	EnableFallback  bool          `envconfig:"ENABLE_FALLBACK" default:"true"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`
	LocalDetection  bool          `envconfig:"LOCAL_DETECTION_ENABLED" default:"false"`

	GoogleAPIKey           string `envconfig:"GOOGLE_API_KEY" default:""`
	MicrosoftAPIKey        string `envconfig:"MICROSOFT_API_KEY" default:""`
	MicrosoftRegion        string `envconfig:"MICROSOFT_REGION" default:""`
	DeepLAPIKey            string `envconfig:"DEEPL_API_KEY" default:""`
	AmazonAccessKeyID      string `envconfig:"AMAZON_ACCESS_KEY_ID" default:""`
	AmazonSecretAccessKey  string `envconfig:"AMAZON_SECRET_ACCESS_KEY" default:""`
	AmazonRegion           string `envconfig:"AMAZON_REGION" default:"us-east-1"`
	LibreTranslateAPIKey   string `envconfig:"LIBRETRANSLATE_API_KEY" default:""`
	LibreTranslateEndpoint string `envconfig:"LIBRETRANSLATE_ENDPOINT" default:""`
	MyMemoryAPIKey         string `envconfig:"MYMEMORY_API_KEY" default:""`

	UsageRecentLimit int `envconfig:"USAGE_RECENT_LIMIT" default:"100"`
	HistoryLimit     int `envconfig:"HISTORY_LIMIT" default:"100"`

	AdminTokenHash     string `envconfig:"ADMIN_TOKEN_HASH" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackendName() {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", StoreBackendMemory, StoreBackendPostgres)
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("VOX_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("VOX_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("VOX_DB_MIN_CONNS (%d) cannot exceed VOX_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.PrimaryProvider) == "" {
		return fmt.Errorf("PRIMARY_PROVIDER is required")
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be >= 0")
	}
	if c.UsageRecentLimit < 1 {
		return fmt.Errorf("USAGE_RECENT_LIMIT must be >= 1")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be >= 1")
	}
	return nil
}

func (c *Config) StoreBackendName() string {
	if c == nil {
		return StoreBackendMemory
	}
	backend := strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if backend == "" {
		return StoreBackendMemory
	}
	return backend
}

func (c *Config) IsLocal() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.Environment), "local")
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
