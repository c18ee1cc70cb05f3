package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no overlap", func(c *Config) { c.ChunkOverlap = 0 }, false},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, true},
		{"negative dimension", func(c *Config) { c.ExpectedDimension = -1 }, true},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, true},
		{"overlap equals size", func(c *Config) { c.ChunkSize = 200; c.ChunkOverlap = 200 }, true},
		{"overlap exceeds size", func(c *Config) { c.ChunkSize = 50; c.ChunkOverlap = 80 }, true},
		{"overlap against default size", func(c *Config) { c.ChunkSize = 0; c.ChunkOverlap = 1000 }, true},
		{"unknown strategy", func(c *Config) { c.Strategy = "semantic" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
