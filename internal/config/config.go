// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, observability,
// and the statutory windows that govern the e-SIC request lifecycle.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "esic-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LifecycleConfig holds the business rules of the records-request lifecycle.
// The defaults follow the federal access-to-information statute; municipalities
// with their own regulation override them through the environment.
type LifecycleConfig struct {
	ResponseDays       int    // ESIC_RESPONSE_DAYS, calendar days to answer
	ExtensionDays      int    // ESIC_EXTENSION_DAYS, one-time extension length
	NearDeadlineDays   int    // ESIC_NEAR_DEADLINE_DAYS, alert threshold
	MaxAppealInstances int    // ESIC_MAX_APPEAL_INSTANCES in [1..3]
	MinDescriptionLen  int    // ESIC_MIN_DESCRIPTION_RUNES
	ProtocolPrefix     string // ESIC_PROTOCOL_PREFIX (e.g. "ESIC")
}

// NATSConfig configures the outbound notification publisher. An empty URL
// disables publishing.
type NATSConfig struct {
	URL           string // NATS_URL (e.g. "nats://localhost:4222")
	SubjectPrefix string // NATS_SUBJECT_PREFIX (e.g. "esic")
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

	// App
	DBPath    string // SQLite path
	Lifecycle LifecycleConfig

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

	// Notifications
	NATS NATSConfig
}

// defaults are the values used when a variable is unset or empty.
var defaults = map[string]any{
	"PORT":                "8080",
	"READ_TIMEOUT":        "15s",
	"READ_HEADER_TIMEOUT": "10s",
	"WRITE_TIMEOUT":       "20s",
	"IDLE_TIMEOUT":        "60s",
	"MAX_HEADER_BYTES":    1 << 20,
	"GIN_MODE":            "release",

	"LOG_LEVEL":       "info",
	"LOG_PRETTY":      "false",
	"SWAGGER_ENABLED": "false",
	"API_BASE_PATH":   "/api/v1",

	"DB_PATH":                    "esic.db",
	"ESIC_RESPONSE_DAYS":         20,
	"ESIC_EXTENSION_DAYS":        10,
	"ESIC_NEAR_DEADLINE_DAYS":    5,
	"ESIC_MAX_APPEAL_INSTANCES":  3,
	"ESIC_MIN_DESCRIPTION_RUNES": 20,
	"ESIC_PROTOCOL_PREFIX":       "ESIC",

	"RATE_RPS":   5.0,
	"RATE_BURST": 10,

	"CORS_ALLOWED_ORIGINS": "",
	"ENABLE_HSTS":          "false",
	"HSTS_MAX_AGE":         "4320h",

	"IDEMPOTENCY_TTL": "24h",

	"OTEL_ENABLED":                "false",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE": "true",
	"OTEL_SERVICE_NAME":           "esic-backend",
	"OTEL_TRACES_SAMPLER_ARG":     1.0,

	"NATS_URL":            "",
	"NATS_SUBJECT_PREFIX": "esic",
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration from the process environment. Values that
// cannot be parsed are reported together with validation failures.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	r := &reader{v: v}
	cfg := Config{
		Port:              strings.TrimSpace(r.str("PORT")),
		ReadTimeout:       r.dur("READ_TIMEOUT"),
		ReadHeaderTimeout: r.dur("READ_HEADER_TIMEOUT"),
		WriteTimeout:      r.dur("WRITE_TIMEOUT"),
		IdleTimeout:       r.dur("IDLE_TIMEOUT"),
		MaxHeaderBytes:    r.int("MAX_HEADER_BYTES"),
		GinMode:           strings.ToLower(r.str("GIN_MODE")),

		LogLevel:       strings.ToLower(strings.TrimSpace(r.str("LOG_LEVEL"))),
		LogPretty:      r.bool("LOG_PRETTY"),
		SwaggerEnabled: r.bool("SWAGGER_ENABLED"),
		APIBasePath:    normalizeBasePath(r.str("API_BASE_PATH")),

		DBPath: strings.TrimSpace(r.str("DB_PATH")),
		Lifecycle: LifecycleConfig{
			ResponseDays:       r.int("ESIC_RESPONSE_DAYS"),
			ExtensionDays:      r.int("ESIC_EXTENSION_DAYS"),
			NearDeadlineDays:   r.int("ESIC_NEAR_DEADLINE_DAYS"),
			MaxAppealInstances: r.int("ESIC_MAX_APPEAL_INSTANCES"),
			MinDescriptionLen:  r.int("ESIC_MIN_DESCRIPTION_RUNES"),
			ProtocolPrefix:     strings.ToUpper(strings.TrimSpace(r.str("ESIC_PROTOCOL_PREFIX"))),
		},

		RateRPS:   r.float("RATE_RPS"),
		RateBurst: r.int("RATE_BURST"),

		CORS: CORSConfig{AllowedOrigins: splitCSV(r.str("CORS_ALLOWED_ORIGINS"))},
		Security: SecurityConfig{
			EnableHSTS: r.bool("ENABLE_HSTS"),
			HSTSMaxAge: r.dur("HSTS_MAX_AGE"),
		},

		IdempotencyTTL: r.dur("IDEMPOTENCY_TTL"),

		OTEL: OTELConfig{
			Enabled:     r.bool("OTEL_ENABLED"),
			Endpoint:    strings.TrimSpace(r.str("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Insecure:    r.bool("OTEL_EXPORTER_OTLP_INSECURE"),
			ServiceName: strings.TrimSpace(r.str("OTEL_SERVICE_NAME")),
			SampleRatio: r.float("OTEL_TRACES_SAMPLER_ARG"),
		},

		NATS: NATSConfig{
			URL:           strings.TrimSpace(r.str("NATS_URL")),
			SubjectPrefix: strings.TrimSpace(r.str("NATS_SUBJECT_PREFIX")),
		},
	}
	if len(r.errs) > 0 {
		return cfg, errors.Join(r.errs...)
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(c.Port != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(c.DBPath != "", "DB_PATH must not be empty")

	lc := c.Lifecycle
	check(lc.ResponseDays >= 1, "ESIC_RESPONSE_DAYS must be >= 1")
	check(lc.ExtensionDays >= 1, "ESIC_EXTENSION_DAYS must be >= 1")
	check(lc.NearDeadlineDays >= 0, "ESIC_NEAR_DEADLINE_DAYS must be >= 0")
	check(lc.MaxAppealInstances >= 1 && lc.MaxAppealInstances <= 3, "ESIC_MAX_APPEAL_INSTANCES must be between 1 and 3")
	check(lc.MinDescriptionLen >= 0, "ESIC_MIN_DESCRIPTION_RUNES must be >= 0")
	check(protocolPrefixRE.MatchString(lc.ProtocolPrefix), "ESIC_PROTOCOL_PREFIX must be 1-10 uppercase letters or digits")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	if c.OTEL.Enabled {
		check(c.OTEL.Endpoint != "", "OTEL_EXPORTER_OTLP_ENDPOINT must not be empty when tracing is enabled")
	}
	check(c.NATS.SubjectPrefix != "", "NATS_SUBJECT_PREFIX must not be empty")

	return errors.Join(errs...)
}

var protocolPrefixRE = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// reader converts viper values and collects conversion errors by key.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) fail(k string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", k, err))
}

func (r *reader) str(k string) string { return r.v.GetString(k) }

func (r *reader) int(k string) int {
	i, err := strconv.Atoi(strings.TrimSpace(r.v.GetString(k)))
	if err != nil {
		r.fail(k, err)
	}
	return i
}

func (r *reader) float(k string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.v.GetString(k)), 64)
	if err != nil {
		r.fail(k, err)
	}
	return f
}

func (r *reader) dur(k string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(r.v.GetString(k)))
	if err != nil {
		r.fail(k, err)
	}
	return d
}

// bool accepts the usual spellings of a switch: 1/0, true/false, yes/no,
// y/n and on/off.
func (r *reader) bool(k string) bool {
	switch strings.ToLower(strings.TrimSpace(r.v.GetString(k))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	r.fail(k, fmt.Errorf("invalid boolean %q", r.v.GetString(k)))
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones; empty
// means root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
