// Package config loads the API server configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. Every key can be set from the
// environment by its upper-cased name (DATABASE_URL) or with the
// RENDEZVOUS_ prefix (RENDEZVOUS_DATABASE_URL); the prefixed form wins.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that take precedence over the
// unprefixed names.
const EnvPrefix = "RENDEZVOUS_"

// Config holds all configuration values for the API server.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"` // enables the profile cache and shared rate limits

	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // accepted during key rotation

	RankingCalibrationPath string        `koanf:"ranking_calibration_path"`
	CandidateLimit         int           `koanf:"candidate_limit"` // rows fetched per scoring request
	InsightRules           []InsightRule `koanf:"insight_rules"`   // file only; empty uses the built-in rules

	ProfileCacheTTLSeconds     int `koanf:"profile_cache_ttl_seconds"`
	RateLimitRequestsPerMinute int `koanf:"rate_limit_requests_per_minute"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTelExporter      string  `koanf:"otel_exporter"` // otlp-http or otlp-grpc
	OTelEndpoint      string  `koanf:"otel_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// InsightRule is an analytics insight rule declared in the config file.
type InsightRule struct {
	Name       string `koanf:"name"`
	Kind       string `koanf:"kind"`
	Expression string `koanf:"expression"`
	Message    string `koanf:"message"`
}

// Validation errors.
var (
	ErrInvalidValue          = errors.New("configuration value has the wrong type")
	ErrMissingDatabaseURL    = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret      = errors.New("JWT_SECRET is required")
	ErrWeakJWTSecret         = errors.New("JWT_SECRET must be at least 32 characters")
	ErrInvalidPort           = errors.New("PORT must be between 1 and 65535")
	ErrInvalidCandidateLimit = errors.New("CANDIDATE_LIMIT must be between 1 and 1000")
	ErrInvalidCacheTTL       = errors.New("PROFILE_CACHE_TTL_SECONDS must not be negative")
	ErrInvalidRateLimit      = errors.New("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive")
	ErrInvalidSampleRate     = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidExporter       = errors.New("OTEL_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidInsightRule    = errors.New("insight rules need a name and an expression")
)

// Defaults for non-secret settings.
const (
	DefaultPort                       = 8080
	DefaultEnv                        = "development"
	DefaultCandidateLimit             = 200
	MaxCandidateLimit                 = 1000
	DefaultProfileCacheTTLSeconds     = 300
	DefaultRateLimitRequestsPerMinute = 120
	DefaultOTelExporter               = "otlp-http"
	DefaultTracingSampleRate          = 0.1
	MinJWTSecretLength                = 32
)

// Defaults returns the configuration used before any file or environment
// variable is applied.
func Defaults() *Config {
	return &Config{
		Port:                       DefaultPort,
		Env:                        DefaultEnv,
		CandidateLimit:             DefaultCandidateLimit,
		ProfileCacheTTLSeconds:     DefaultProfileCacheTTLSeconds,
		RateLimitRequestsPerMinute: DefaultRateLimitRequestsPerMinute,
		OTelExporter:               DefaultOTelExporter,
		TracingSampleRate:          DefaultTracingSampleRate,
	}
}

// keys lists every koanf key of Config, used to filter the environment.
var keys = func() map[string]bool {
	out := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("koanf"); tag != "" {
			out[tag] = true
		}
	}
	return out
}()

// envKey maps an environment variable to its config key, or "" to skip it.
// insight_rules is structured and only comes from the file.
func envKey(name string) string {
	key := strings.ToLower(name)
	if !keys[key] || key == "insight_rules" {
		return ""
	}
	return key
}

// Load builds the configuration from defaults, the optional file at
// configFilePath and the environment. It returns the config together with
// every problem found, so callers can report them all at once. A file that
// cannot be read or parsed is returned as the only error with a nil config.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, []error{fmt.Errorf("failed to load defaults: %w", err)}
	}
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, []error{fmt.Errorf("failed to read environment: %w", err)}
	}
	prefixed := func(name string) string { return envKey(strings.TrimPrefix(name, EnvPrefix)) }
	if err := k.Load(env.Provider(EnvPrefix, ".", prefixed), nil); err != nil {
		return nil, []error{fmt.Errorf("failed to read environment: %w", err)}
	}

	cfg, errs := decode(k)
	return cfg, append(errs, cfg.Validate()...)
}

// decode unmarshals one key at a time so a bad value only costs its own
// field, which keeps its default.
func decode(k *koanf.Koanf) (*Config, []error) {
	cfg := Defaults()
	var errs []error

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("koanf")
		if !k.Exists(key) {
			continue
		}
		field := reflect.New(t.Field(i).Type)
		if err := k.Unmarshal(key, field.Interface()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), ErrInvalidValue))
			continue
		}
		v.Field(i).Set(field.Elem())
	}

	cfg.CORSAllowedOrigins = trimList(cfg.CORSAllowedOrigins)
	return cfg, errs
}

// trimList drops blanks from a list that may have come from "a, b,".
func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ProfileCacheTTL returns the profile cache TTL as a duration.
func (c *Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSeconds) * time.Second
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks required values and ranges. It returns every violation.
func (c *Config) Validate() []error {
	var errs []error
	check := func(bad bool, err error) {
		if bad {
			errs = append(errs, err)
		}
	}

	check(c.Port < 1 || c.Port > 65535, ErrInvalidPort)
	check(c.DatabaseURL == "", ErrMissingDatabaseURL)
	check(c.JWTSecret == "", ErrMissingJWTSecret)
	check(c.JWTSecret != "" && len(c.JWTSecret) < MinJWTSecretLength, ErrWeakJWTSecret)
	check(c.CandidateLimit < 1 || c.CandidateLimit > MaxCandidateLimit, ErrInvalidCandidateLimit)
	check(c.ProfileCacheTTLSeconds < 0, ErrInvalidCacheTTL)
	check(c.RateLimitRequestsPerMinute <= 0, ErrInvalidRateLimit)
	check(c.TracingSampleRate < 0 || c.TracingSampleRate > 1, ErrInvalidSampleRate)
	check(c.OTelExporter != "otlp-http" && c.OTelExporter != "otlp-grpc", ErrInvalidExporter)
	for _, r := range c.InsightRules {
		if r.Name == "" || r.Expression == "" {
			errs = append(errs, ErrInvalidInsightRule)
			break
		}
	}
	return errs
}

// LogSummary returns the configuration as strings for a startup log line,
// with secrets and URL passwords masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                           strconv.Itoa(c.Port),
		"env":                            c.Env,
		"database_url":                   maskURL(c.DatabaseURL),
		"redis_url":                      maskURL(c.RedisURL),
		"jwt_secret":                     maskSecret(c.JWTSecret),
		"jwt_previous_secret":            maskSecret(c.JWTPreviousSecret),
		"ranking_calibration_path":       c.RankingCalibrationPath,
		"candidate_limit":                strconv.Itoa(c.CandidateLimit),
		"insight_rules":                  strconv.Itoa(len(c.InsightRules)),
		"profile_cache_ttl_seconds":      strconv.Itoa(c.ProfileCacheTTLSeconds),
		"rate_limit_requests_per_minute": strconv.Itoa(c.RateLimitRequestsPerMinute),
		"cors_allowed_origins":           strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":                strconv.FormatBool(c.TracingEnabled),
		"otel_exporter":                  c.OTelExporter,
		"otel_endpoint":                  c.OTelEndpoint,
		"tracing_sample_rate":            strconv.FormatFloat(c.TracingSampleRate, 'f', 2, 64),
	}
}

// maskSecret keeps the first four characters of secrets of eight or more.
func maskSecret(s string) string {
	switch {
	case s == "":
		return "<not set>"
	case len(s) < 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

// maskURL hides the password of a postgres:// or redis:// URL. Strings
// that are not URLs are treated as secrets.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return maskSecret(s)
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return s
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return s
	}
	return scheme + "://" + user + ":****@" + host
}
