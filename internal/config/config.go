package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL selects the Postgres-backed store. When empty the
	// process runs against an in-memory store, which is only useful for
	// local experiments and tests.
	DatabaseURL    string `envconfig:"DATABASE_URL" default:""`
	DBMinConns     int32  `envconfig:"PG_DB_MIN_CONNS" default:"1"`
	DBMaxConns     int32  `envconfig:"PG_DB_MAX_CONNS" default:"8"`
	StoreNamespace string `envconfig:"STORE_NAMESPACE" default:"training"`

	ListenAddr         string `envconfig:"LISTEN_ADDR" default:":8810"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	MaxTargetLanguages int `envconfig:"MAX_TARGET_LANGUAGES" default:"12"`

	TranslateMaxAttempts  int           `envconfig:"TRANSLATE_MAX_ATTEMPTS" default:"3"`
	TranslateInitialDelay time.Duration `envconfig:"TRANSLATE_INITIAL_DELAY" default:"1s"`
	VerifyDisabled        bool          `envconfig:"VERIFY_DISABLED" default:"false"`
	VerifyMaxAttempts     int           `envconfig:"VERIFY_MAX_ATTEMPTS" default:"6"`
	VerifyInitialDelay    time.Duration `envconfig:"VERIFY_INITIAL_DELAY" default:"500ms"`
	VerifyMaxDelay        time.Duration `envconfig:"VERIFY_MAX_DELAY" default:"8s"`
	VerifyMaxTotalWait    time.Duration `envconfig:"VERIFY_MAX_TOTAL_WAIT" default:"30s"`
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
	if c.DBMinConns < 0 {
		return fmt.Errorf("PG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("PG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("PG_DB_MIN_CONNS (%d) cannot exceed PG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.StoreNamespace) == "" {
		return fmt.Errorf("STORE_NAMESPACE is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("LISTEN_ADDR is required")
	}
	if c.MaxTargetLanguages < 1 {
		return fmt.Errorf("MAX_TARGET_LANGUAGES must be >= 1")
	}
	if c.TranslateMaxAttempts < 1 {
		return fmt.Errorf("TRANSLATE_MAX_ATTEMPTS must be >= 1")
	}
	if c.TranslateInitialDelay < 0 {
		return fmt.Errorf("TRANSLATE_INITIAL_DELAY cannot be negative")
	}
	if c.VerifyMaxAttempts < 1 {
		return fmt.Errorf("VERIFY_MAX_ATTEMPTS must be >= 1")
	}
	if c.VerifyInitialDelay <= 0 {
		return fmt.Errorf("VERIFY_INITIAL_DELAY must be positive")
	}
	if c.VerifyMaxDelay < c.VerifyInitialDelay {
		return fmt.Errorf("VERIFY_MAX_DELAY (%s) cannot be below VERIFY_INITIAL_DELAY (%s)", c.VerifyMaxDelay, c.VerifyInitialDelay)
	}
	if c.VerifyMaxTotalWait <= 0 {
		return fmt.Errorf("VERIFY_MAX_TOTAL_WAIT must be positive")
	}
	return nil
}

// UseMemoryStore reports whether the process should run without Postgres.
func (c *Config) UseMemoryStore() bool {
	return c == nil || strings.TrimSpace(c.DatabaseURL) == ""
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
