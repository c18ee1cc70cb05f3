package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("with custom host and model", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithAPIKey("sk-test"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
	})

	t.Run("with gemini backend", func(t *testing.T) {
		cfg := NewConfig(WithBackend(BackendGemini))
		assert.Equal(t, BackendGemini, cfg.Backend)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		host     string
		wantHost string
	}{
		{name: "adds /v1 suffix", backend: BackendOpenAI, host: "http://localhost:11434", wantHost: "http://localhost:11434/v1"},
		{name: "trailing slash", backend: BackendOpenAI, host: "http://localhost:11434/", wantHost: "http://localhost:11434/v1"},
		{name: "already normalized", backend: BackendOpenAI, host: "http://localhost:11434/v1", wantHost: "http://localhost:11434/v1"},
		{name: "gemini host untouched", backend: BackendGemini, host: "https://example.com", wantHost: "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Backend: tt.backend, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.wantHost, cfg.EmbeddingHost)
		})
	}

	t.Run("backend case and default", func(t *testing.T) {
		cfg := &Config{Backend: " OpenAI "}
		cfg.Normalize()
		assert.Equal(t, BackendOpenAI, cfg.Backend)

		cfg = &Config{}
		cfg.Normalize()
		assert.Equal(t, BackendOpenAI, cfg.Backend)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "valid defaults", cfg: DefaultConfig()},
		{name: "missing host", cfg: &Config{Backend: BackendOpenAI, EmbeddingModel: "m"}, wantErr: "EmbeddingHost"},
		{name: "missing model", cfg: &Config{Backend: BackendOpenAI, EmbeddingHost: "http://x"}, wantErr: "EmbeddingModel"},
		{name: "gemini without key", cfg: &Config{Backend: BackendGemini, EmbeddingModel: "m"}, wantErr: "APIKey"},
		{name: "gemini with key", cfg: &Config{Backend: BackendGemini, EmbeddingModel: "m", APIKey: "k"}},
		{name: "unknown backend", cfg: &Config{Backend: "cohere", EmbeddingModel: "m"}, wantErr: "Backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("401 unauthorized")

	assert.Nil(t, Permanent(nil))
	assert.False(t, IsPermanent(base))

	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
}
