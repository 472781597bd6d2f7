package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testSecret = "supersecret32characterlongvalue!"

// isolateEnv unsets every variable Load could read, then applies vars.
func isolateEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key := range keys {
		for _, name := range []string{strings.ToUpper(key), EnvPrefix + strings.ToUpper(key)} {
			if v, ok := os.LookupEnv(name); ok {
				os.Unsetenv(name)
				t.Cleanup(func() { os.Setenv(name, v) })
			}
		}
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func hasErr(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var required = map[string]string{
	"DATABASE_URL": "postgres://localhost/rendezvous",
	"JWT_SECRET":   testSecret,
}

func with(extra map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range required {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t, required)

	cfg, errs := Load("")
	if len(errs) > 0 {
		t.Fatalf("Load() errors = %v", errs)
	}

	d := Defaults()
	if cfg.Port != d.Port || cfg.Env != d.Env || cfg.CandidateLimit != d.CandidateLimit ||
		cfg.RateLimitRequestsPerMinute != d.RateLimitRequestsPerMinute ||
		cfg.OTelExporter != d.OTelExporter || cfg.TracingSampleRate != d.TracingSampleRate {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, d)
	}
	if cfg.TracingEnabled || len(cfg.CORSAllowedOrigins) != 0 || len(cfg.InsightRules) != 0 {
		t.Errorf("optional settings should be off: %+v", cfg)
	}
	if cfg.ProfileCacheTTL() != 5*time.Minute {
		t.Errorf("ProfileCacheTTL() = %v, want 5m", cfg.ProfileCacheTTL())
	}
}

func TestLoad_Environment(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(*testing.T, *Config)
	}{
		{
			name: "numbers and floats",
			env:  with(map[string]string{"CANDIDATE_LIMIT": "50", "TRACING_SAMPLE_RATE": "0.5", "PROFILE_CACHE_TTL_SECONDS": "0"}),
			check: func(t *testing.T, c *Config) {
				if c.CandidateLimit != 50 || c.TracingSampleRate != 0.5 || c.ProfileCacheTTLSeconds != 0 {
					t.Errorf("got limit=%d rate=%v ttl=%d", c.CandidateLimit, c.TracingSampleRate, c.ProfileCacheTTLSeconds)
				}
			},
		},
		{
			name: "origins list is split and trimmed",
			env:  with(map[string]string{"CORS_ALLOWED_ORIGINS": "https://app.example.com, http://localhost:5173,"}),
			check: func(t *testing.T, c *Config) {
				want := []string{"https://app.example.com", "http://localhost:5173"}
				if !reflect.DeepEqual(c.CORSAllowedOrigins, want) {
					t.Errorf("CORSAllowedOrigins = %q, want %q", c.CORSAllowedOrigins, want)
				}
			},
		},
		{
			name: "tracing switch",
			env:  with(map[string]string{"TRACING_ENABLED": "true", "OTEL_EXPORTER": "otlp-grpc"}),
			check: func(t *testing.T, c *Config) {
				if !c.TracingEnabled || c.OTelExporter != "otlp-grpc" {
					t.Errorf("got enabled=%v exporter=%q", c.TracingEnabled, c.OTelExporter)
				}
			},
		},
		{
			name: "prefixed name wins",
			env:  with(map[string]string{"PORT": "9000", "RENDEZVOUS_PORT": "9100", "ENV": "staging", "RENDEZVOUS_ENV": "production"}),
			check: func(t *testing.T, c *Config) {
				if c.Port != 9100 || !c.IsProduction() {
					t.Errorf("got port=%d env=%q", c.Port, c.Env)
				}
			},
		},
		{
			name: "prefixed secret alone",
			env:  map[string]string{"RENDEZVOUS_DATABASE_URL": "postgres://db/rendezvous", "RENDEZVOUS_JWT_SECRET": testSecret},
			check: func(t *testing.T, c *Config) {
				if c.DatabaseURL != "postgres://db/rendezvous" || c.JWTSecret != testSecret {
					t.Errorf("got db=%q secret=%q", c.DatabaseURL, c.JWTSecret)
				}
			},
		},
		{
			name: "unrelated variables ignored",
			env:  with(map[string]string{"HOME_PORT": "1", "RENDEZVOUS_UNKNOWN": "x"}),
			check: func(t *testing.T, c *Config) {
				if c.Port != DefaultPort {
					t.Errorf("Port = %d, want default", c.Port)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t, tt.env)

			cfg, errs := Load("")
			if len(errs) > 0 {
				t.Fatalf("Load() errors = %v", errs)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want []error
	}{
		{"nothing set", nil, []error{ErrMissingDatabaseURL, ErrMissingJWTSecret}},
		{"weak secret", map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "short"}, []error{ErrWeakJWTSecret}},
		{"port not a number", with(map[string]string{"PORT": "http"}), []error{ErrInvalidValue}},
		{"port out of range", with(map[string]string{"PORT": "70000"}), []error{ErrInvalidPort}},
		{"candidate limit too large", with(map[string]string{"CANDIDATE_LIMIT": "5000"}), []error{ErrInvalidCandidateLimit}},
		{"negative cache ttl", with(map[string]string{"PROFILE_CACHE_TTL_SECONDS": "-1"}), []error{ErrInvalidCacheTTL}},
		{"zero rate limit", with(map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "0"}), []error{ErrInvalidRateLimit}},
		{"sample rate above one", with(map[string]string{"TRACING_SAMPLE_RATE": "2"}), []error{ErrInvalidSampleRate}},
		{"sample rate not a number", with(map[string]string{"TRACING_SAMPLE_RATE": "often"}), []error{ErrInvalidValue}},
		{"unknown exporter", with(map[string]string{"OTEL_EXPORTER": "jaeger"}), []error{ErrInvalidExporter}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t, tt.env)

			cfg, errs := Load("")
			if cfg == nil {
				t.Fatal("expected a config alongside validation errors")
			}
			if len(errs) != len(tt.want) {
				t.Errorf("Load() errors = %v, want %v", errs, tt.want)
			}
			for _, want := range tt.want {
				if !hasErr(errs, want) {
					t.Errorf("missing %v in %v", want, errs)
				}
			}
		})
	}
}

// A value that fails to decode keeps its default.
func TestLoad_BadValueKeepsDefault(t *testing.T) {
	isolateEnv(t, with(map[string]string{"CANDIDATE_LIMIT": "lots"}))

	cfg, errs := Load("")
	if !hasErr(errs, ErrInvalidValue) {
		t.Fatalf("Load() errors = %v, want ErrInvalidValue", errs)
	}
	if cfg.CandidateLimit != DefaultCandidateLimit {
		t.Errorf("CandidateLimit = %d, want default %d", cfg.CandidateLimit, DefaultCandidateLimit)
	}
	if !strings.Contains(errs[0].Error(), "CANDIDATE_LIMIT") {
		t.Errorf("error %q should name the variable", errs[0])
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfigFile(t, `
port: 9000
database_url: postgres://file/rendezvous
jwt_secret: `+testSecret+`
candidate_limit: 300
cors_allowed_origins:
  - https://app.example.com
insight_rules:
  - name: start_conversations
    kind: suggestion
    expression: matches > 0 && messagesSent == 0
    message: You have matches waiting.
`)

	t.Run("file values", func(t *testing.T) {
		isolateEnv(t, nil)

		cfg, errs := Load(path)
		if len(errs) > 0 {
			t.Fatalf("Load() errors = %v", errs)
		}
		if cfg.Port != 9000 || cfg.CandidateLimit != 300 || cfg.DatabaseURL != "postgres://file/rendezvous" {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://app.example.com" {
			t.Errorf("CORSAllowedOrigins = %q", cfg.CORSAllowedOrigins)
		}
		want := []InsightRule{{
			Name:       "start_conversations",
			Kind:       "suggestion",
			Expression: "matches > 0 && messagesSent == 0",
			Message:    "You have matches waiting.",
		}}
		if !reflect.DeepEqual(cfg.InsightRules, want) {
			t.Errorf("InsightRules = %+v", cfg.InsightRules)
		}
		if cfg.RateLimitRequestsPerMinute != DefaultRateLimitRequestsPerMinute {
			t.Errorf("unset key lost its default: %d", cfg.RateLimitRequestsPerMinute)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		isolateEnv(t, map[string]string{"CANDIDATE_LIMIT": "25", "RENDEZVOUS_PORT": "9200"})

		cfg, errs := Load(path)
		if len(errs) > 0 {
			t.Fatalf("Load() errors = %v", errs)
		}
		if cfg.CandidateLimit != 25 || cfg.Port != 9200 {
			t.Errorf("got limit=%d port=%d", cfg.CandidateLimit, cfg.Port)
		}
	})

	t.Run("insight rules only from file", func(t *testing.T) {
		isolateEnv(t, map[string]string{"INSIGHT_RULES": "ignored"})

		cfg, errs := Load(path)
		if len(errs) > 0 {
			t.Fatalf("Load() errors = %v", errs)
		}
		if len(cfg.InsightRules) != 1 {
			t.Errorf("InsightRules = %+v", cfg.InsightRules)
		}
	})
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"invalid yaml", func(t *testing.T) string { return writeConfigFile(t, "port: [unclosed") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t, required)

			cfg, errs := Load(tt.path(t))
			if cfg != nil {
				t.Error("expected no config when the file cannot be loaded")
			}
			if len(errs) != 1 {
				t.Errorf("Load() errors = %v, want exactly one", errs)
			}
		})
	}
}

func TestLoad_IncompleteInsightRule(t *testing.T) {
	isolateEnv(t, required)
	path := writeConfigFile(t, "insight_rules:\n  - name: nameless_expression\n")

	_, errs := Load(path)
	if !hasErr(errs, ErrInvalidInsightRule) {
		t.Errorf("Load() errors = %v, want ErrInvalidInsightRule", errs)
	}
}

func TestLogSummary_MasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://rendezvous:hunter2@db:5432/rendezvous?sslmode=disable"
	cfg.RedisURL = "redis://cache:6379/0"
	cfg.JWTSecret = testSecret
	cfg.CORSAllowedOrigins = []string{"https://a.example.com", "https://b.example.com"}

	got := cfg.LogSummary()
	want := map[string]string{
		"database_url":         "postgres://rendezvous:****@db:5432/rendezvous?sslmode=disable",
		"redis_url":            "redis://cache:6379/0",
		"jwt_secret":           "supe****",
		"jwt_previous_secret":  "<not set>",
		"port":                 "8080",
		"tracing_sample_rate":  "0.10",
		"cors_allowed_origins": "https://a.example.com,https://b.example.com",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	for k, v := range got {
		if strings.Contains(v, "hunter2") || strings.Contains(v, testSecret) {
			t.Errorf("%s leaks a secret: %q", k, v)
		}
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "<not set>"},
		{"postgres://u:p@h/db", "postgres://u:****@h/db"},
		{"postgresql://user@h/db", "postgresql://user@h/db"},
		{"redis://:secret@cache:6379", "redis://:****@cache:6379"},
		{"redis://cache:6379", "redis://cache:6379"},
		{"not-a-url-but-long", "not-****"},
		{"short", "****"},
	}

	for _, tt := range tests {
		if got := maskURL(tt.in); got != tt.want {
			t.Errorf("maskURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
