package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Session   SessionConfig   `mapstructure:"session"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

// RiskConfig locates the risk backend. An empty BaseURL is allowed: every
// query then fails with a configuration error instead of the process refusing
// to start.
type RiskConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (r RiskConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SessionConfig holds the defaults of an interactive map session.
type SessionConfig struct {
	DebounceMS          int     `mapstructure:"debounce_ms"`
	DefaultRadius       float64 `mapstructure:"default_radius"`
	MinRadius           float64 `mapstructure:"min_radius"`
	Zoom                float64 `mapstructure:"zoom"`
	InitialZoom         float64 `mapstructure:"initial_zoom"`
	CenterLat           float64 `mapstructure:"center_lat"`
	CenterLng           float64 `mapstructure:"center_lng"`
	PingIntervalSeconds int     `mapstructure:"ping_interval_seconds"`
}

func (s SessionConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

func (s SessionConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSeconds) * time.Second
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env files, an optional config file and
// environment variables.
func Load(service string) (*Config, error) {
	// .env.local takes precedence over .env; neither overrides the real environment.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 40)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("risk.base_url", "")
	v.SetDefault("risk.endpoint", "/geo/risk")
	v.SetDefault("risk.timeout_seconds", 30)
	v.SetDefault("session.debounce_ms", 400)
	v.SetDefault("session.default_radius", 1000)
	v.SetDefault("session.min_radius", 1)
	v.SetDefault("session.zoom", 14)
	v.SetDefault("session.initial_zoom", 12)
	v.SetDefault("session.center_lat", -25.43)
	v.SetDefault("session.center_lng", -49.27)
	v.SetDefault("session.ping_interval_seconds", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "georisk")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "georisk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEORISK_RISK_BASE_URL → risk.base_url
	v.SetEnvPrefix("GEORISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the web client's build
	_ = v.BindEnv("risk.base_url", "GEORISK_RISK_BASE_URL", "NEXT_PUBLIC_API_BASE_URL")
	_ = v.BindEnv("risk.endpoint", "GEORISK_RISK_ENDPOINT", "NEXT_PUBLIC_API_RISK_ENDPOINT")
	_ = v.BindEnv("log.level", "GEORISK_LOG_LEVEL", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Risk.BaseURL = strings.TrimSpace(cfg.Risk.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if c.Risk.BaseURL != "" {
		u, err := url.Parse(c.Risk.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("risk.base_url must be an absolute http(s) URL, got %q", c.Risk.BaseURL))
		}
	}
	if c.Risk.TimeoutSeconds <= 0 {
		errs = append(errs, "risk.timeout_seconds must be positive")
	}

	if c.Session.DebounceMS < 0 {
		errs = append(errs, "session.debounce_ms must not be negative")
	}
	if c.Session.MinRadius <= 0 {
		errs = append(errs, "session.min_radius must be positive")
	}
	if c.Session.DefaultRadius < c.Session.MinRadius {
		errs = append(errs, fmt.Sprintf("session.default_radius must be at least session.min_radius (%g)", c.Session.MinRadius))
	}
	if c.Session.Zoom < 0 || c.Session.Zoom > 22 {
		errs = append(errs, fmt.Sprintf("session.zoom must be 0-22, got %g", c.Session.Zoom))
	}
	if c.Session.CenterLat < -90 || c.Session.CenterLat > 90 || c.Session.CenterLng < -180 || c.Session.CenterLng > 180 {
		errs = append(errs, "session.center_lat/center_lng out of range")
	}

	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
