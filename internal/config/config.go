// Package config provides configuration loading for the poll bot from the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Update modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Persistence backends.
const (
	PersistenceNone     = "none"
	PersistenceMemory   = "memory"
	PersistenceFile     = "file"
	PersistenceSQLite   = "sqlite"
	PersistencePostgres = "postgres"
	PersistenceRedis    = "redis"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

var (
	modes        = []string{ModePolling, ModeWebhook}
	persistences = []string{PersistenceNone, PersistenceMemory, PersistenceFile, PersistenceSQLite, PersistencePostgres, PersistenceRedis}
	exporters    = []string{ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC}
)

// Config holds all configuration for the application. Values from the YAML
// file named by BOT_CONFIG_FILE are overridden by environment variables.
type Config struct {
	TelegramBotToken string `yaml:"token"`
	// APIBaseURL replaces https://api.telegram.org, e.g. for a local Bot API server.
	APIBaseURL string `yaml:"api_base_url"`
	Mode       string `yaml:"mode"`

	WebhookListen string `yaml:"webhook_listen"`
	WebhookPort   int    `yaml:"webhook_port"`
	WebhookPath   string `yaml:"webhook_path"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`

	ConcurrentUpdates int `yaml:"concurrent_updates"`

	Persistence    string `yaml:"persistence"`
	PersistenceDSN string `yaml:"persistence_dsn"`

	LogLevel        string `yaml:"log_level"`
	LogJSON         bool   `yaml:"log_json"`
	MetricsAddr     string `yaml:"metrics_addr"`
	TraceExporter   string `yaml:"trace_exporter"`
	MetricsExporter string `yaml:"metrics_exporter"`

	WhitelistedUserIDs   []int64  `yaml:"whitelisted_user_ids"`
	WhitelistedUsernames []string `yaml:"whitelisted_usernames"`
	DeveloperChatID      int64    `yaml:"developer_chat_id"`
}

func defaults() *Config {
	return &Config{
		Mode:              ModePolling,
		WebhookListen:     "0.0.0.0",
		WebhookPort:       8443,
		ConcurrentUpdates: 1,
		Persistence:       PersistenceNone,
		LogLevel:          "info",
		TraceExporter:     ExporterNone,
		MetricsExporter:   ExporterNone,
	}
}

// Load reads configuration from the YAML file named by BOT_CONFIG_FILE, if
// any, and from environment variables, including a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("BOT_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	errs := cfg.applyEnv()
	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	// an empty file decodes to io.EOF
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.WhitelistedUsernames = normalizeUsernames(c.WhitelistedUsernames)
	return nil
}

// applyEnv overrides fields with the environment variables that are set and
// returns the values it could not parse.
func (c *Config) applyEnv() []string {
	var errs []string

	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a number, got %q", key, v))
			return
		}
		*dst = n
	}

	setString("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	setString("TELEGRAM_API_URL", &c.APIBaseURL)
	setString("BOT_MODE", &c.Mode)
	setString("WEBHOOK_LISTEN", &c.WebhookListen)
	setInt("WEBHOOK_PORT", &c.WebhookPort)
	setString("WEBHOOK_PATH", &c.WebhookPath)
	setString("WEBHOOK_URL", &c.WebhookURL)
	setString("WEBHOOK_SECRET", &c.WebhookSecret)
	setInt("CONCURRENT_UPDATES", &c.ConcurrentUpdates)
	setString("PERSISTENCE", &c.Persistence)
	setString("PERSISTENCE_DSN", &c.PersistenceDSN)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("METRICS_ADDR", &c.MetricsAddr)
	setString("TRACE_EXPORTER", &c.TraceExporter)
	setString("METRICS_EXPORTER", &c.MetricsExporter)

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogJSON = strings.EqualFold(v, "json")
	}

	if v := os.Getenv("DEVELOPER_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DEVELOPER_CHAT_ID must be a chat id, got %q", v))
		} else {
			c.DeveloperChatID = id
		}
	}

	if v := os.Getenv("WHITELISTED_USER_IDS"); v != "" {
		c.WhitelistedUserIDs = nil
		for idStr := range strings.SplitSeq(v, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				continue
			}
			c.WhitelistedUserIDs = append(c.WhitelistedUserIDs, id)
		}
	}
	if v := os.Getenv("WHITELISTED_USERNAMES"); v != "" {
		c.WhitelistedUsernames = normalizeUsernames(strings.Split(v, ","))
	}
	return errs
}

func normalizeUsernames(names []string) []string {
	var out []string
	for _, name := range names {
		// Remove @ prefix if present
		name = strings.TrimPrefix(strings.TrimSpace(name), "@")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// validate checks that all required configuration is present.
func (c *Config) validate() []string {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if !slices.Contains(modes, c.Mode) {
		errs = append(errs, fmt.Sprintf("BOT_MODE must be one of %s", strings.Join(modes, ", ")))
	}
	if c.Mode == ModeWebhook {
		if c.WebhookURL == "" {
			errs = append(errs, "WEBHOOK_URL is required in webhook mode")
		}
		if c.WebhookPort < 0 || c.WebhookPort > 65535 {
			errs = append(errs, "WEBHOOK_PORT must be between 0 and 65535")
		}
	}
	if c.ConcurrentUpdates < 1 {
		errs = append(errs, "CONCURRENT_UPDATES must be at least 1")
	}
	if !slices.Contains(persistences, c.Persistence) {
		errs = append(errs, fmt.Sprintf("PERSISTENCE must be one of %s", strings.Join(persistences, ", ")))
	} else if c.NeedsDSN() && c.PersistenceDSN == "" {
		errs = append(errs, fmt.Sprintf("PERSISTENCE_DSN is required for %s persistence", c.Persistence))
	}
	if !slices.Contains(exporters, c.TraceExporter) {
		errs = append(errs, fmt.Sprintf("TRACE_EXPORTER must be one of %s", strings.Join(exporters, ", ")))
	}
	if !slices.Contains(exporters, c.MetricsExporter) {
		errs = append(errs, fmt.Sprintf("METRICS_EXPORTER must be one of %s", strings.Join(exporters, ", ")))
	}
	return errs
}

// NeedsDSN reports whether the persistence backend needs PersistenceDSN.
func (c *Config) NeedsDSN() bool {
	switch c.Persistence {
	case PersistenceFile, PersistenceSQLite, PersistencePostgres, PersistenceRedis:
		return true
	}
	return false
}

// Restricted reports whether only whitelisted users may use the bot.
func (c *Config) Restricted() bool {
	return len(c.WhitelistedUserIDs) > 0 || len(c.WhitelistedUsernames) > 0
}

// IsUserWhitelisted checks if a Telegram user ID or username is in the whitelist.
// Returns true if either the user ID or username is whitelisted.
func (c *Config) IsUserWhitelisted(userID int64, username string) bool {
	if slices.Contains(c.WhitelistedUserIDs, userID) {
		return true
	}

	// Check username whitelist (case-insensitive)
	if username != "" {
		username = strings.TrimPrefix(username, "@")
		for _, whitelisted := range c.WhitelistedUsernames {
			if strings.EqualFold(whitelisted, username) {
				return true
			}
		}
	}

	return false
}
