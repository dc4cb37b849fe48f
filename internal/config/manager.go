// Package config loads and saves cfg.json in the vimlm home directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// File names under the vimlm home.
const (
	ConfigFile = "cfg.json"
	LogFile    = "log.json"
	MailboxDir = "watch_dir"
	EnvFile    = ".env"
)

// Config holds the persistent settings.
type Config struct {
	Debug       bool   `json:"debug"`
	Model       string `json:"model"`
	TokenBudget int    `json:"token_budget" validate:"gt=0"`
	Separator   string `json:"separator" validate:"required"`
	AltKeys     bool   `json:"alt_keys"` // editor-side keybinding choice, stored for the plugin

	Provider string `json:"provider" validate:"oneof=ollama lmstudio openai anthropic"`
	BaseURL  string `json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string `json:"api_key,omitempty"`

	ChunkTokens    int      `json:"chunk_tokens" validate:"gt=0"`
	CacheBackend   string   `json:"cache_backend" validate:"oneof=json sqlite"`
	Ignore         []string `json:"ignore,omitempty"`
	MaxFileBytes   int64    `json:"max_file_bytes" validate:"gte=0"`
	DeployReformat bool     `json:"deploy_reformat"`
	SettleMS       int      `json:"settle_ms" validate:"gte=0"`
}

// Default returns the settings written to a fresh cfg.json.
func Default() *Config {
	return &Config{
		Debug:        true,
		Model:        "llama3.2",
		TokenBudget:  2000,
		Separator:    "!@#$",
		Provider:     "ollama",
		ChunkTokens:  2000,
		CacheBackend: "json",
		MaxFileBytes: 1 << 20,
		SettleMS:     50,
	}
}

// Settle is SettleMS as a duration.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Manager handles loading and saving the configuration.
type Manager struct {
	home string
}

// NewManager creates a manager rooted at home. An empty home means ~/vimlm.
func NewManager(home string) (*Manager, error) {
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home dir: %w", err)
		}
		home = filepath.Join(userHome, "vimlm")
	}
	return &Manager{home: home}, nil
}

// Home returns the vimlm home directory.
func (m *Manager) Home() string { return m.home }

// GetConfigPath returns the absolute path to cfg.json.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.home, ConfigFile)
}

// LogPath returns the log file path.
func (m *Manager) LogPath() string {
	return filepath.Join(m.home, LogFile)
}

// MailboxPath returns the mailbox directory.
func (m *Manager) MailboxPath() string {
	return filepath.Join(m.home, MailboxDir)
}

// Load reads cfg.json. A missing or unparseable file is replaced by the
// defaults, which are returned. Keys absent from the file keep their default.
func (m *Manager) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(m.GetConfigPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, m.Save(cfg)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		return cfg, m.Save(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions, since it may
// hold an API key.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.home, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if the configuration file has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return !os.IsNotExist(err)
}

// LoadEnv loads .env from the working directory and from the vimlm home,
// without overriding variables already set. Missing files are fine.
func (m *Manager) LoadEnv() error {
	for _, path := range []string{EnvFile, filepath.Join(m.home, EnvFile)} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with VIMLM_* variables, then fills the API key and
// base URL from the provider's own variables when still unset. Overrides are
// not saved.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("VIMLM_PROVIDER"); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("VIMLM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("VIMLM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VIMLM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("VIMLM_SEPARATOR"); v != "" {
		cfg.Separator = v
	}
	if v := os.Getenv("VIMLM_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = v
	}
	if v := os.Getenv("VIMLM_TOKEN_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VIMLM_TOKEN_BUDGET %q: %w", v, err)
		}
		cfg.TokenBudget = n
	}
	if v := os.Getenv("VIMLM_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VIMLM_DEBUG %q: %w", v, err)
		}
		cfg.Debug = b
	}

	switch cfg.Provider {
	case "openai":
		cfg.APIKey = getEnvOrDefault("OPENAI_API_KEY", cfg.APIKey)
		cfg.BaseURL = getEnvOrDefault("OPENAI_BASE_URL", cfg.BaseURL)
	case "anthropic":
		cfg.APIKey = getEnvOrDefault("ANTHROPIC_API_KEY", cfg.APIKey)
	case "ollama":
		if host := os.Getenv("OLLAMA_HOST"); host != "" && cfg.BaseURL == "" {
			cfg.BaseURL = ollamaURL(host)
		}
	}
	return cfg.Validate()
}

// getEnvOrDefault prefers the value already configured; the environment only
// fills gaps.
func getEnvOrDefault(key, current string) string {
	if current != "" {
		return current
	}
	return os.Getenv(key)
}

// ollamaURL turns an OLLAMA_HOST value such as "gpu:11434" into the
// OpenAI-compatible endpoint.
func ollamaURL(host string) string {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}
