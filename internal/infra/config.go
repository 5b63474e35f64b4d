package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"escrow/internal/domain"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DefaultProgramID is the deployed escrow program the address scheme binds to.
const DefaultProgramID = "8zeHBfNfVkHQcWpJH9HRnR8NoEfrW6zSGqmZvBMWeCkd"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string   `env:"APP_ENV" envDefault:"development"`
	Port            string   `env:"PORT" envDefault:"8080"`
	DatabaseURL     string   `env:"DATABASE_URL"`
	JWTSecret       string   `env:"JWT_SECRET"`
	ProgramIDText   string   `env:"PROGRAM_ID" envDefault:"8zeHBfNfVkHQcWpJH9HRnR8NoEfrW6zSGqmZvBMWeCkd"`
	StoreDriver     string   `env:"STORE_DRIVER" envDefault:"memory"`
	GeoIPDBPath     string   `env:"GEOIP_DB_PATH"`
	CORSOrigins     []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitPerMin int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	AuditSchedule   string   `env:"AUDIT_SCHEDULE" envDefault:"@every 5m"`
	AuditReportPath string   `env:"AUDIT_REPORT_PATH" envDefault:"./var/audit"`

	ReadTimeoutSeconds  int `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	WriteTimeoutSeconds int `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	IdleTimeoutSeconds  int `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`

	ProgramID        domain.Pubkey
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	program, err := domain.ParsePubkey(strings.TrimSpace(cfg.ProgramIDText))
	if err != nil {
		return nil, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	cfg.ProgramID = program

	cfg.HTTPReadTimeout = seconds(cfg.ReadTimeoutSeconds, 15)
	cfg.HTTPWriteTimeout = seconds(cfg.WriteTimeoutSeconds, 30)
	cfg.HTTPIdleTimeout = seconds(cfg.IdleTimeoutSeconds, 60)
	if cfg.RateLimitPerMin < 0 {
		cfg.RateLimitPerMin = 0
	}

	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins

	return cfg, nil
}

// IsDevelopment reports whether development-only surfaces such as the
// airdrop faucet are enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
