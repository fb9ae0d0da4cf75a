// Package config loads application configuration from TRACKLINK_ environment
// variables and an optional .env file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is prepended to every key when reading the environment.
const envPrefix = "TRACKLINK"

// Config holds the application configuration.
type Config struct {
	ListenAddr         string        `mapstructure:"LISTEN_ADDR"`
	DBPath             string        `mapstructure:"DB_PATH"`
	SecretKeyHex       string        `mapstructure:"SECRET_KEY"`
	WebhookCallbackURL string        `mapstructure:"WEBHOOK_CALLBACK_URL"`
	GitHubAPIURL       string        `mapstructure:"GITHUB_API_URL"`
	CIBaseURL          string        `mapstructure:"CI_BASE_URL"`
	CIUsername         string        `mapstructure:"CI_USERNAME"`
	CIAPIToken         string        `mapstructure:"CI_API_TOKEN"`
	CICallbackKey      string        `mapstructure:"CI_CALLBACK_KEY"`
	CICallbackURL      string        `mapstructure:"CI_CALLBACK_URL"`
	PipelineTemplates  string        `mapstructure:"PIPELINE_TEMPLATES"`
	ReconcileInterval  time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	ReconcileGrace     time.Duration `mapstructure:"RECONCILE_GRACE"`
	WebhookMaxRetries  int           `mapstructure:"WEBHOOK_MAX_RETRIES"`
	BuildStaleAfter    time.Duration `mapstructure:"BUILD_STALE_AFTER"`
	BuildSweepInterval time.Duration `mapstructure:"BUILD_SWEEP_INTERVAL"`
	HTTPTimeout        time.Duration `mapstructure:"HTTP_TIMEOUT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LogFormat          string        `mapstructure:"LOG_FORMAT"`

	// SecretKey is the decoded AES-256 key for stored credentials.
	SecretKey []byte `mapstructure:"-"`
}

var defaults = map[string]any{
	"LISTEN_ADDR":          "127.0.0.1:8080",
	"DB_PATH":              "tracklink.db",
	"SECRET_KEY":           "",
	"WEBHOOK_CALLBACK_URL": "",
	"GITHUB_API_URL":       "",
	"CI_BASE_URL":          "",
	"CI_USERNAME":          "",
	"CI_API_TOKEN":         "",
	"CI_CALLBACK_KEY":      "",
	"CI_CALLBACK_URL":      "",
	"PIPELINE_TEMPLATES":   "",
	"RECONCILE_INTERVAL":   "5m",
	"RECONCILE_GRACE":      "10m",
	"WEBHOOK_MAX_RETRIES":  3,
	"BUILD_STALE_AFTER":    "6h",
	"BUILD_SWEEP_INTERVAL": "15m",
	"HTTP_TIMEOUT":         "15s",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
}

// Load reads configuration from the environment (and ./.env when present)
// and returns a validated Config. TRACKLINK_SECRET_KEY and
// TRACKLINK_CI_CALLBACK_KEY are required; everything else has a default.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.MergeConfigMap(readEnvFile(".env")); err != nil {
		return nil, fmt.Errorf("merge .env: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// readEnvFile returns the keys of an env-format file with any TRACKLINK_
// prefix removed, so the file accepts the same names as the environment.
// Unprefixed keys are kept as-is. A missing or unreadable file yields nil.
func readEnvFile(path string) map[string]any {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return nil
	}

	prefix := strings.ToLower(envPrefix) + "_"
	out := make(map[string]any)
	for _, key := range file.AllKeys() {
		name, prefixed := strings.CutPrefix(key, prefix)
		if _, taken := out[name]; taken && !prefixed {
			continue
		}
		out[name] = file.Get(key)
	}
	return out
}

func (c *Config) validate() error {
	if c.SecretKeyHex == "" {
		return errors.New(envPrefix + "_SECRET_KEY is required")
	}
	key, err := hex.DecodeString(c.SecretKeyHex)
	if err != nil || len(key) != 32 {
		return errors.New(envPrefix + "_SECRET_KEY must be 64 hex characters (32 bytes)")
	}
	c.SecretKey = key

	if c.CICallbackKey == "" {
		return errors.New(envPrefix + "_CI_CALLBACK_KEY is required")
	}

	if c.WebhookMaxRetries < 1 {
		return fmt.Errorf("%s_WEBHOOK_MAX_RETRIES must be at least 1, got %d", envPrefix, c.WebhookMaxRetries)
	}
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("%s_RECONCILE_INTERVAL must be positive, got %s", envPrefix, c.ReconcileInterval)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%s_HTTP_TIMEOUT must be positive, got %s", envPrefix, c.HTTPTimeout)
	}
	if c.BuildStaleAfter < 0 {
		return fmt.Errorf("%s_BUILD_STALE_AFTER must not be negative, got %s", envPrefix, c.BuildStaleAfter)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%s_LOG_FORMAT must be json or text, got %q", envPrefix, c.LogFormat)
	}

	return nil
}

// HasCI reports whether a job runner is configured.
func (c *Config) HasCI() bool {
	return c.CIBaseURL != ""
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// NewLogger builds the structured logger described by LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s_LOG_LEVEL must be debug, info, warn or error, got %q", envPrefix, s)
	}
	return level, nil
}
