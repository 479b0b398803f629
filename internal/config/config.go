// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database and provider credentials, rate
// limiting, and observability.
package config

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-sms-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TwilioConfig holds the messaging provider credentials and client settings.
type TwilioConfig struct {
	AccountSID        string        // TWILIO_ACCOUNT_SID
	AuthToken         string        // TWILIO_AUTH_TOKEN
	PhoneNumber       string        // TWILIO_PHONE_NUMBER, default sender
	BaseURL           string        // TWILIO_BASE_URL
	Timeout           time.Duration // TWILIO_TIMEOUT
	StatusCallbackURL string        // TWILIO_STATUS_CALLBACK_URL (public URL of the webhook)
}

// RedisConfig configures the optional callback replay cache.
type RedisConfig struct {
	Addr     string // REDIS_ADDR; empty disables the cache
	Password string
	DB       int
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver     string        // sqlite|postgres
	DBPath       string        // SQLite path
	DBDSN        string        // Postgres DSN (DB_DRIVER=postgres)
	StoreTimeout time.Duration // upper bound for a single reconciliation write

	// Delivery status
	StatusMonotonic  bool          // reject backward transitions out of terminal states
	CallbackDedupTTL time.Duration // replay cache TTL
	BulkConcurrency  int           // parallel provider calls per bulk send

	// Provider
	Twilio TwilioConfig
	Redis  RedisConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MissingTwilioVars lists the provider variables that are required for
// outbound sends but unset. The webhook works without them.
func (c Config) MissingTwilioVars() []string {
	var out []string
	if c.Twilio.AccountSID == "" {
		out = append(out, "TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		out = append(out, "TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.PhoneNumber == "" {
		out = append(out, "TWILIO_PHONE_NUMBER")
	}
	return out
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the process environment. See LoadFrom.
func Load() (Config, error) { return LoadFrom(os.LookupEnv) }

// LoadFrom builds a Config from lookup, applying defaults and normalization,
// then validates it. Unparsable values fall back to their defaults; values
// that parse but are out of range are reported by Validate.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	e := env(lookup)
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBDriver:     strings.ToLower(e.str("DB_DRIVER", "sqlite")),
		DBPath:       e.str("DB_PATH", "app.db"),
		DBDSN:        e.str("DB_DSN", ""),
		StoreTimeout: e.dur("STORE_TIMEOUT", 5*time.Second),

		StatusMonotonic:  e.bool("STATUS_MONOTONIC", true),
		CallbackDedupTTL: e.dur("CALLBACK_DEDUP_TTL", 24*time.Hour),
		BulkConcurrency:  e.int("BULK_CONCURRENCY", 8),

		Twilio: TwilioConfig{
			AccountSID:        e.str("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         e.str("TWILIO_AUTH_TOKEN", ""),
			PhoneNumber:       e.str("TWILIO_PHONE_NUMBER", ""),
			BaseURL:           strings.TrimRight(e.str("TWILIO_BASE_URL", "https://api.twilio.com"), "/"),
			Timeout:           e.dur("TWILIO_TIMEOUT", 10*time.Second),
			StatusCallbackURL: e.str("TWILIO_STATUS_CALLBACK_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
		},

		RateRPS:   e.float("RATE_RPS", 5.0),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.csv("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-sms-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DBDriver == "postgres" && cfg.DBDSN == "" {
		cfg.DBDSN = e.str("DATABASE_URL", "")
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting, joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DBDSN) == "", "DB_DSN must be set when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}
	check(c.StoreTimeout <= 0, "STORE_TIMEOUT must be > 0")
	check(c.CallbackDedupTTL <= 0, "CALLBACK_DEDUP_TTL must be > 0")
	check(c.BulkConcurrency < 1, "BULK_CONCURRENCY must be >= 1")

	check(c.Twilio.Timeout <= 0, "TWILIO_TIMEOUT must be > 0")
	check(c.Twilio.BaseURL == "", "TWILIO_BASE_URL must not be empty")
	check(c.Twilio.PhoneNumber != "" && !e164.MatchString(c.Twilio.PhoneNumber), "TWILIO_PHONE_NUMBER must be E.164")
	check(c.Redis.DB < 0, "REDIS_DB must be >= 0")

	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// env reads typed values from a lookup; empty counts as unset.
type env func(string) (string, bool)

func (e env) str(k, def string) string {
	if v, ok := e(k); ok && v != "" {
		return v
	}
	return def
}

func (e env) float(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(e.str(k, ""), 64); err == nil {
		return f
	}
	return def
}

func (e env) int(k string, def int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(e.str(k, ""))); err == nil {
		return i
	}
	return def
}

func (e env) bool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(e.str(k, ""))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func (e env) dur(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(e.str(k, ""))); err == nil {
		return d
	}
	return def
}

// csv splits a comma-separated value, dropping blanks.
func (e env) csv(k string) []string {
	var out []string
	for _, p := range strings.Split(e.str(k, ""), ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones, keeping root as "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
