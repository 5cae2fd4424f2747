package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	BaseURL         string        `yaml:"base_url" env:"INNERCITY_BASE_URL"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"INNERCITY_REQUEST_TIMEOUT"`
	DataDir         string        `yaml:"data_dir" env:"INNERCITY_DATA_DIR"`
	TransitionDelay time.Duration `yaml:"transition_delay" env:"INNERCITY_TRANSITION_DELAY"`
	HistoryLimit    int           `yaml:"history_limit" env:"INNERCITY_HISTORY_LIMIT"`

	LogLevel    string `yaml:"log_level" env:"INNERCITY_LOG_LEVEL"`
	LogEncoding string `yaml:"log_encoding" env:"INNERCITY_LOG_ENCODING"`
	LogFile     string `yaml:"log_file" env:"INNERCITY_LOG_FILE"`

	// Only the headless simulator talks to Gemini.
	GeminiAPIKey string `yaml:"-" env:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model" env:"INNERCITY_GEMINI_MODEL"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		BaseURL:         "http://127.0.0.1:5001",
		DataDir:         ".innercity",
		TransitionDelay: 3 * time.Second,
		HistoryLimit:    10,
		LogLevel:        "info",
		LogEncoding:     "json",
		GeminiModel:     "gemini-2.5-flash",
	}
}

// FileEnv names the variable pointing at an optional YAML config file.
const FileEnv = "INNERCITY_CONFIG"

// LoadConfig loads the configuration from .env, an optional YAML file and the environment.
// Environment variables win over the file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LogFile == "" && cfg.DataDir != "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "innercity.log")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is not set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}
	if c.TransitionDelay < 0 {
		return fmt.Errorf("transition delay must not be negative, got %s", c.TransitionDelay)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	return nil
}
