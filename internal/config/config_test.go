package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		StoragePath:    "/tmp/kura/knowledge",
		CollectionName: DefaultCollectionName,
		EmbedderModel:  DefaultEmbedderModel,
		EnhancedModel:  DefaultEnhancedModel,
		GeminiAPIKey:   "test-api-key-value",
		Addr:           ":8080",
		LogLevel:       "info",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty storage path", func(c *Config) { c.StoragePath = "  " }, ErrInvalidStoragePath},
		{"empty collection", func(c *Config) { c.CollectionName = "" }, ErrInvalidCollectionName},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"addr without port", func(c *Config) { c.Addr = "localhost" }, ErrInvalidAddr},
		{"empty addr", func(c *Config) { c.Addr = "" }, ErrInvalidAddr},
		{"missing api key", func(c *Config) { c.GeminiAPIKey = "" }, ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate_Nil(t *testing.T) {
	var cfg *Config
	require.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestConfig_MarshalJSON_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "super-secret-gemini-key"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "super-secret-gemini-key", "API key must never appear in JSON output")
	assert.Contains(t, out, maskedValue)
	assert.Contains(t, out, "standard_collection", "non-sensitive fields should survive marshaling")
}

func TestConfig_MarshalJSON_ShortSecretFullyMasked(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "ab12cd"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ab12cd", "short secrets must be fully masked")
}

func TestConfig_String_UsesMasking(t *testing.T) {
	cfg := validConfig()
	cfg.GeminiAPIKey = "another-secret-value-here"

	assert.NotContains(t, cfg.String(), "another-secret-value-here")
}
