// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// Server exits if any field tagged "required" is missing.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration sourced from environment variables.
// Field defaults match .env.example.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS"           envDefault:"25"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME"  envDefault:"5m"`
	DBStatementTimeoutMS int           `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"14000"`
	// DBQueryExecMode: "simple_protocol" (PgBouncer-compatible) or "extended_protocol".
	DBQueryExecMode string `env:"DB_QUERY_EXEC_MODE" envDefault:"simple_protocol"`

	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ExternalURL            string `env:"EXTERNAL_URL"             envDefault:"http://localhost:8080"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"60"`
	RegistrationMode       string `env:"REGISTRATION_MODE"        envDefault:"open"`

	// ── Auth: JWT ───────────────────────────────────────────────────────────────
	JWTSecret    string `env:"JWT_SECRET,required"`
	JWTAlgorithm string `env:"JWT_ALGORITHM" envDefault:"HS256"`

	// ── Auth: cookies ───────────────────────────────────────────────────────────
	// Must be false for http://localhost; must be true in production with TLS.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`

	// ── Auth: Argon2id ──────────────────────────────────────────────────────────
	// Max simultaneous hash operations; each allocates ~19.5 MB.
	Argon2MaxConcurrent int `env:"ARGON2_MAX_CONCURRENT" envDefault:"5"`

	// ── OAuth: GitHub ───────────────────────────────────────────────────────────
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`

	// ── Email: SMTP ─────────────────────────────────────────────────────────────
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"dutyleak@localhost"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPTLS      bool   `env:"SMTP_TLS"  envDefault:"false"`

	// ── Classification: LLM providers ───────────────────────────────────────────
	// Primary classifier: any OpenAI-compatible chat completions endpoint.
	ClassifierBaseURL string `env:"CLASSIFIER_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ClassifierAPIKey  string `env:"CLASSIFIER_API_KEY"`
	ClassifierModel   string `env:"CLASSIFIER_MODEL"    envDefault:"gpt-4o-mini"`
	// Fallback classifier consulted when the primary's confidence is below
	// CLASSIFIER_MIN_CONFIDENCE. Empty base URL disables the fallback.
	FallbackBaseURL         string  `env:"FALLBACK_CLASSIFIER_BASE_URL"`
	FallbackAPIKey          string  `env:"FALLBACK_CLASSIFIER_API_KEY"`
	FallbackModel           string  `env:"FALLBACK_CLASSIFIER_MODEL"`
	ClassifierMinConfidence float64 `env:"CLASSIFIER_MIN_CONFIDENCE" envDefault:"0.75"`

	// ── Duty rates: tariff API ──────────────────────────────────────────────────
	TariffAPIBaseURL string        `env:"TARIFF_API_BASE_URL" envDefault:"https://api.tariffdata.dev/v1"`
	TariffAPIKey     string        `env:"TARIFF_API_KEY"`
	DutyRateTTL      time.Duration `env:"DUTY_RATE_TTL" envDefault:"168h"`

	// ── Batch jobs ───────────────────────────────────────────────────────────────
	BatchMaxProducts int `env:"BATCH_MAX_PRODUCTS" envDefault:"500"`

	// ── Rate limiting ────────────────────────────────────────────────────────────
	// Comma-separated CIDRs of trusted reverse proxies; empty = no proxy.
	TrustedProxies    string        `env:"TRUSTED_PROXIES"`
	RateLimitEvictTTL time.Duration `env:"RATE_LIMIT_EVICT_TTL" envDefault:"15m"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
