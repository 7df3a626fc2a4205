// Package config loads the service configuration from YAML, dotenv files
// and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"honeypot/internal/llm"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		APIKey          string        `yaml:"api_key"`
		JWTSecret       string        `yaml:"jwt_secret"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	// Reply providers, tried in order with failover.
	Providers               []llm.ProviderConfig `yaml:"providers"`
	MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`
	GenerateTimeout         time.Duration        `yaml:"generate_timeout"`

	Classifier struct {
		LexiconPath string `yaml:"lexicon_path"`
	} `yaml:"classifier"`

	Session struct {
		TTL      time.Duration `yaml:"ttl"`
		Capacity int           `yaml:"capacity"`
	} `yaml:"session"`

	Database struct {
		Type string `yaml:"type"` // "sqlite" or "postgres"
		URL  string `yaml:"url"`  // SQLite path or PostgreSQL URL
	} `yaml:"database"`

	Crypto struct {
		Passphrase string `yaml:"passphrase"`
		Salt       string `yaml:"salt"`
	} `yaml:"crypto"`

	Reporter struct {
		CallbackURL  string        `yaml:"callback_url"`
		APIKey       string        `yaml:"api_key"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxRetries   int           `yaml:"max_retries"`
		FallbackFile string        `yaml:"fallback_file"`
	} `yaml:"reporter"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Analytics struct {
		CSVPath string `yaml:"csv_path"`
	} `yaml:"analytics"`
}

// envFiles are loaded before the YAML is expanded. Variables already set
// in the process environment win.
var envFiles = []string{"api.env", ".env"}

// LoadConfig loads configuration from a YAML file. A missing file is not
// an error: defaults and environment variables still apply.
func LoadConfig(configPath string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	config := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	applyEnv(config)
	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("SQLITE_DB_PATH"); v != "" {
		c.Database.Type = "sqlite"
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Type = "postgres"
		c.Database.URL = v
	}
	if v := os.Getenv("CSV_LOG_PATH"); v != "" {
		c.Analytics.CSVPath = v
	}
	if v := os.Getenv("LOCAL_CALLBACK_FILE"); v != "" {
		c.Reporter.FallbackFile = v
	}
	if v := os.Getenv("CALLBACK_URL"); v != "" {
		c.Reporter.CallbackURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	// A bare GEMINI_API_KEY configures a single Gemini provider.
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && len(c.Providers) == 0 {
		c.Providers = []llm.ProviderConfig{{Type: llm.ProviderGemini, APIKey: v}}
	}
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}
	if c.GenerateTimeout == 0 {
		c.GenerateTimeout = 10 * time.Second
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 2 * time.Hour
	}
	if c.Session.Capacity == 0 {
		c.Session.Capacity = 10000
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Type == "sqlite" {
		c.Database.URL = "./data/honeypot.db"
	}
	if c.Crypto.Salt == "" {
		c.Crypto.Salt = "honeypot"
	}
	if c.Reporter.Timeout == 0 {
		c.Reporter.Timeout = 5 * time.Second
	}
	if c.Reporter.MaxRetries == 0 {
		c.Reporter.MaxRetries = 2
	}
	if c.Reporter.FallbackFile == "" {
		c.Reporter.FallbackFile = "./data/scammer.txt"
	}
	if c.Analytics.CSVPath == "" {
		c.Analytics.CSVPath = "./data/honeypot_logs.csv"
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.URL == "" {
		return errors.New("database url is required")
	}
	if c.Session.Capacity < 0 || c.Session.TTL < 0 {
		return errors.New("session ttl and capacity must not be negative")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram chat_id is required when bot_token is set")
	}
	for i, p := range c.Providers {
		switch p.Type {
		case llm.ProviderGemini, llm.ProviderGroq, llm.ProviderOpenRouter:
		default:
			return fmt.Errorf("provider %d: unsupported type %q", i, p.Type)
		}
	}
	return nil
}
