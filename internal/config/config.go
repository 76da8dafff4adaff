// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kura/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Security: sensitive data (API keys) is never logged; the config
// directory uses 0750 permissions.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidStoragePath indicates the storage path is empty.
	ErrInvalidStoragePath = errors.New("invalid storage path")

	// ErrInvalidCollectionName indicates the collection name is empty.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEnhancedModel is the generation model used by enhanced
	// document conversion.
	DefaultEnhancedModel = "googleai/gemini-2.5-flash"

	// DefaultCollectionName matches the collection the store creates on
	// first run.
	DefaultCollectionName = "standard_collection"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// Knowledge store configuration
	StoragePath    string `mapstructure:"storage_path" json:"storage_path"`
	CollectionName string `mapstructure:"collection_name" json:"collection_name"`
	EmbedderModel  string `mapstructure:"embedder_model" json:"embedder_model"`

	// Document conversion configuration
	EnhancedMode  bool   `mapstructure:"enhanced_mode" json:"enhanced_mode"`
	EnhancedModel string `mapstructure:"enhanced_model" json:"enhanced_model"`

	// GeminiAPIKey authorizes embedding and, when enhanced mode is on,
	// generation calls. SENSITIVE: masked in MarshalJSON.
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"`

	// HTTP server configuration
	Addr string `mapstructure:"addr" json:"addr"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kura")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("storage_path", filepath.Join(configDir, "knowledge"))
	v.SetDefault("collection_name", DefaultCollectionName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("enhanced_mode", false)
	v.SetDefault("enhanced_model", DefaultEnhancedModel)

	v.SetDefault("addr", ":8080")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly. All overrides
// use the KURA_ prefix except GEMINI_API_KEY, which keeps the name the
// Gemini tooling ecosystem expects.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")

	mustBind("storage_path", "KURA_STORAGE_PATH")
	mustBind("collection_name", "KURA_COLLECTION_NAME")
	mustBind("embedder_model", "KURA_EMBEDDER_MODEL")
	mustBind("enhanced_mode", "KURA_ENHANCED_MODE")
	mustBind("enhanced_model", "KURA_ENHANCED_MODEL")
	mustBind("addr", "KURA_ADDR")
	mustBind("log_level", "KURA_LOG_LEVEL")
	mustBind("log_json", "KURA_LOG_JSON")
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the store or the server.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if strings.TrimSpace(c.StoragePath) == "" {
		return fmt.Errorf("%w: storage_path must not be empty", ErrInvalidStoragePath)
	}
	if strings.TrimSpace(c.CollectionName) == "" {
		return fmt.Errorf("%w: collection_name must not be empty", ErrInvalidCollectionName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if strings.TrimSpace(c.Addr) == "" || !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q, want host:port or :port", ErrInvalidAddr, c.Addr)
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars
// or fewer are fully masked; longer ones keep the first and last 2
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
