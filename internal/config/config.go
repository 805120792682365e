// Load envs from .env
// Load YAML config (env vars expanded)
// Override with env vars
// Provide default values
// Validate config

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	HH        HHConfig        `yaml:"hh"`
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	AutoReply AutoReplyConfig `yaml:"autoreply"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	WebhookURL    string `yaml:"webhook_url" env:"TELEGRAM_WEBHOOK_URL"`
	WebhookSecret string `yaml:"webhook_secret" env:"TELEGRAM_WEBHOOK_SECRET"`
	Debug         bool   `yaml:"debug"`
}

type HHConfig struct {
	ClientID     string `yaml:"client_id" env:"HH_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"HH_CLIENT_SECRET"`
	RedirectURI  string `yaml:"redirect_uri" env:"HH_REDIRECT_URI"`
	UserAgent    string `yaml:"user_agent"`
	BaseURL      string `yaml:"base_url"`
	AuthURL      string `yaml:"auth_url"`
	TokenURL     string `yaml:"token_url"`
	PerPage      int    `yaml:"per_page"`
	// Timeout applies to every hh.ru request.
	Timeout time.Duration `yaml:"timeout"`
}

type AIConfig struct {
	// Provider is "template" (fixed letter) or "groq".
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key" env:"GROQ_API_KEY"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	FallbackLetter string `yaml:"fallback_letter"`
}

type StorageConfig struct {
	// Backend is one of memory, postgres, redis.
	Backend     string      `yaml:"backend"`
	DatabaseURL string      `yaml:"database_url" env:"DATABASE_URL"`
	Redis       RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type AutoReplyConfig struct {
	MaxReplies int `yaml:"max_replies"`
	// Schedule is a cron expression; empty disables the periodic run.
	Schedule      string `yaml:"schedule"`
	ResumeSummary string `yaml:"resume_summary"`
	// SeenCachePath enables skipping vacancies already responded to.
	SeenCachePath string `yaml:"seen_cache_path"`
}

type ServerConfig struct {
	Port       string `yaml:"port" env:"PORT"`
	AdminToken string `yaml:"admin_token" env:"ADMIN_TOKEN"`
}

type LoggingConfig struct {
	Level     string `yaml:"level" env:"LOG_LEVEL"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Load reads .env, then the YAML file at path (missing file is fine), then
// applies env overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	override := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	override(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	override(&c.Telegram.WebhookURL, "TELEGRAM_WEBHOOK_URL")
	override(&c.Telegram.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
	override(&c.HH.ClientID, "HH_CLIENT_ID")
	override(&c.HH.ClientSecret, "HH_CLIENT_SECRET")
	override(&c.HH.RedirectURI, "HH_REDIRECT_URI")
	override(&c.AI.APIKey, "GROQ_API_KEY")
	override(&c.Storage.Backend, "STORAGE_BACKEND")
	override(&c.Storage.DatabaseURL, "DATABASE_URL")
	override(&c.Storage.Redis.Address, "REDIS_ADDR")
	override(&c.Storage.Redis.Password, "REDIS_PASSWORD")
	override(&c.Server.Port, "PORT")
	override(&c.Server.AdminToken, "ADMIN_TOKEN")
	override(&c.Logging.Level, "LOG_LEVEL")

	if raw := os.Getenv("MAX_REPLIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid MAX_REPLIES: %w", err)
		}
		c.AutoReply.MaxReplies = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HH.BaseURL == "" {
		c.HH.BaseURL = "https://api.hh.ru"
	}
	if c.HH.AuthURL == "" {
		c.HH.AuthURL = "https://hh.ru/oauth/authorize"
	}
	if c.HH.TokenURL == "" {
		c.HH.TokenURL = "https://hh.ru/oauth/token"
	}
	if c.HH.UserAgent == "" {
		c.HH.UserAgent = "hh-autoreply-bot/1.0"
	}
	if c.HH.PerPage == 0 {
		c.HH.PerPage = 20
	}
	if c.HH.Timeout == 0 {
		c.HH.Timeout = 15 * time.Second
	}

	if c.AI.Provider == "" {
		c.AI.Provider = "template"
		if c.AI.APIKey != "" {
			c.AI.Provider = "groq"
		}
	}
	if c.AI.Model == "" {
		c.AI.Model = "llama-3.3-70b-versatile"
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://api.groq.com/openai/v1"
	}

	if c.Storage.Backend == "" {
		switch {
		case c.Storage.DatabaseURL != "":
			c.Storage.Backend = "postgres"
		case c.Storage.Redis.Address != "":
			c.Storage.Backend = "redis"
		default:
			c.Storage.Backend = "memory"
		}
	}
	if c.Storage.Redis.PoolSize == 0 {
		c.Storage.Redis.PoolSize = 10
	}

	if c.AutoReply.MaxReplies == 0 {
		c.AutoReply.MaxReplies = 10
	}

	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the fields every command needs. Command-specific
// requirements (bot token for serve) are checked by the command.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case "redis":
		if c.Storage.Redis.Address == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.AI.Provider {
	case "template":
	case "groq":
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("GROQ_API_KEY is required for the groq provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ai provider %q", c.AI.Provider))
	}

	if c.AutoReply.MaxReplies < 0 {
		errs = append(errs, errors.New("autoreply.max_replies must not be negative"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RequireBot checks the settings needed to talk to Telegram and hh.ru.
func (c *Config) RequireBot() error {
	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.HH.ClientID == "" || c.HH.ClientSecret == "" {
		errs = append(errs, errors.New("HH_CLIENT_ID and HH_CLIENT_SECRET are required"))
	}
	if c.HH.RedirectURI == "" {
		errs = append(errs, errors.New("HH_REDIRECT_URI is required"))
	}
	return errors.Join(errs...)
}

const redacted = "***"

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&c.Telegram.BotToken)
	mask(&c.Telegram.WebhookSecret)
	mask(&c.HH.ClientSecret)
	mask(&c.AI.APIKey)
	mask(&c.Storage.DatabaseURL)
	mask(&c.Storage.Redis.Password)
	mask(&c.Server.AdminToken)
	return c
}
