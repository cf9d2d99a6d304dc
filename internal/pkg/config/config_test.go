package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test in an empty directory so no .env or config.yaml
// from the repository leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("georisk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Risk.BaseURL != "" {
		t.Errorf("expected empty risk base url, got %q", cfg.Risk.BaseURL)
	}
	if cfg.Risk.Endpoint != "/geo/risk" || cfg.Risk.Timeout() != 30*time.Second {
		t.Errorf("unexpected risk config %+v", cfg.Risk)
	}
	if cfg.Session.Debounce() != 400*time.Millisecond {
		t.Errorf("expected 400ms debounce, got %v", cfg.Session.Debounce())
	}
	if cfg.Session.DefaultRadius != 1000 || cfg.Session.MinRadius != 1 || cfg.Session.Zoom != 14 {
		t.Errorf("unexpected session config %+v", cfg.Session)
	}
	if cfg.Session.CenterLat != -25.43 || cfg.Session.CenterLng != -49.27 {
		t.Errorf("unexpected default center %+v", cfg.Session)
	}
	if cfg.Telemetry.ServiceName != "georisk-test" {
		t.Errorf("expected service name from caller, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GEORISK_RISK_BASE_URL", "http://risk.internal:8000")
	t.Setenv("GEORISK_SESSION_DEBOUNCE_MS", "250")
	t.Setenv("GEORISK_SESSION_DEFAULT_RADIUS", "750.5")
	t.Setenv("GEORISK_SERVER_PORT", "9090")

	cfg, err := Load("georisk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Risk.BaseURL != "http://risk.internal:8000" {
		t.Errorf("unexpected base url %q", cfg.Risk.BaseURL)
	}
	if cfg.Session.DebounceMS != 250 || cfg.Session.DefaultRadius != 750.5 || cfg.Server.Port != 9090 {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Session, cfg.Server)
	}
}

func TestLoad_WebClientAliases(t *testing.T) {
	isolate(t)
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", " http://localhost:8000/docs ")
	t.Setenv("NEXT_PUBLIC_API_RISK_ENDPOINT", "/v2/risk")

	cfg, err := Load("georisk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Risk.BaseURL != "http://localhost:8000/docs" {
		t.Errorf("expected trimmed alias value, got %q", cfg.Risk.BaseURL)
	}
	if cfg.Risk.Endpoint != "/v2/risk" {
		t.Errorf("expected endpoint alias, got %q", cfg.Risk.Endpoint)
	}
}

func TestLoad_PrefixedNameWinsOverAlias(t *testing.T) {
	isolate(t)
	t.Setenv("GEORISK_RISK_BASE_URL", "http://primary:8000")
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "http://alias:8000")

	cfg, err := Load("georisk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Risk.BaseURL != "http://primary:8000" {
		t.Errorf("expected prefixed variable to win, got %q", cfg.Risk.BaseURL)
	}
}

func TestLoad_DotEnvFiles(t *testing.T) {
	dir := isolate(t)
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write(".env", "GEORISK_RISK_BASE_URL=http://from-env-file:8000\nGEORISK_SESSION_ZOOM=13\n")
	write(".env.local", "GEORISK_RISK_BASE_URL=http://from-env-local:8000\n")

	// godotenv sets process variables; register them for cleanup.
	t.Setenv("GEORISK_RISK_BASE_URL", "")
	os.Unsetenv("GEORISK_RISK_BASE_URL")
	t.Setenv("GEORISK_SESSION_ZOOM", "")
	os.Unsetenv("GEORISK_SESSION_ZOOM")

	cfg, err := Load("georisk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Risk.BaseURL != "http://from-env-local:8000" {
		t.Errorf("expected .env.local to take precedence, got %q", cfg.Risk.BaseURL)
	}
	if cfg.Session.Zoom != 13 {
		t.Errorf("expected zoom from .env, got %g", cfg.Session.Zoom)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 40},
			Risk:     RiskConfig{Endpoint: "/geo/risk", TimeoutSeconds: 30},
			Session:  SessionConfig{DebounceMS: 400, DefaultRadius: 1000, MinRadius: 1, Zoom: 14},
			Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "georisk", DBName: "georisk"},
			NATS:     NATSConfig{URL: "nats://localhost:4222"},
			Log:      LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"valid with base url", func(c *Config) { c.Risk.BaseURL = "https://risk.example.com" }, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"relative base url", func(c *Config) { c.Risk.BaseURL = "risk.example.com" }, "risk.base_url"},
		{"ftp base url", func(c *Config) { c.Risk.BaseURL = "ftp://risk.example.com" }, "risk.base_url"},
		{"zero timeout", func(c *Config) { c.Risk.TimeoutSeconds = 0 }, "risk.timeout_seconds"},
		{"negative debounce", func(c *Config) { c.Session.DebounceMS = -1 }, "session.debounce_ms"},
		{"zero min radius", func(c *Config) { c.Session.MinRadius = 0 }, "session.min_radius"},
		{"default below min", func(c *Config) { c.Session.DefaultRadius = 0.5 }, "session.default_radius"},
		{"zoom out of range", func(c *Config) { c.Session.Zoom = 30 }, "session.zoom"},
		{"missing nats", func(c *Config) { c.NATS.URL = "" }, "nats.url"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"server.port", "risk.timeout_seconds", "session.min_radius", "database.host", "nats.url"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %s in %v", key, err)
		}
	}
}
