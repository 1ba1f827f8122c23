package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultPublicBaseURL = "http://localhost:8080"
	DefaultJWTExpiresIn  = "24h"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "ripple"
	DefaultPGSSLMode     = "disable"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultMediaRoot     = "data/media"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Media    MediaConfig    `toml:"media"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// PublicBaseURL is the externally reachable base URL used when building
	// upload and media URLs handed to clients.
	PublicBaseURL string `toml:"public_base_url"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type MediaConfig struct {
	DataRoot string `toml:"data_root"`
	// HandleTTLMinutes bounds how long an unused upload handle stays valid.
	HandleTTLMinutes int `toml:"handle_ttl_minutes"`
}

// Load reads the TOML config at path, falling back to DefaultConfigPath and
// filling unset fields with defaults. A missing file yields a default config.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = DefaultPublicBaseURL
	}
	if c.Auth.JWTExpiresIn == "" {
		c.Auth.JWTExpiresIn = DefaultJWTExpiresIn
	}
	if c.Postgres.Host == "" {
		c.Postgres.Host = DefaultPGHost
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = DefaultPGPort
	}
	if c.Postgres.User == "" {
		c.Postgres.User = DefaultPGUser
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = DefaultPGDatabase
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = DefaultPGSSLMode
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = 30
	}
	if c.Media.DataRoot == "" {
		c.Media.DataRoot = DefaultMediaRoot
	}
	if c.Media.HandleTTLMinutes <= 0 {
		c.Media.HandleTTLMinutes = 60
	}
}

// JWTExpiry parses the configured JWT lifetime.
func (c AuthConfig) JWTExpiry() (time.Duration, error) {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil {
		return 0, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return d, nil
}

// DSN builds the postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Timeout returns the configured AI client timeout.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HandleTTL returns how long an upload handle stays claimable.
func (c MediaConfig) HandleTTL() time.Duration {
	return time.Duration(c.HandleTTLMinutes) * time.Minute
}
