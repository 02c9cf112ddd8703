package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbedderConfig
		wantErr  bool
		errMsg   string
		wantDims uint64
	}{
		{
			name:     "valid config",
			cfg:      config.EmbedderConfig{APIKey: "test-key"},
			wantDims: VectorSize,
		},
		{
			name:     "large model",
			cfg:      config.EmbedderConfig{APIKey: "test-key", Model: "text-embedding-3-large"},
			wantDims: 3072,
		},
		{
			name:     "ada model",
			cfg:      config.EmbedderConfig{APIKey: "test-key", Model: "text-embedding-ada-002"},
			wantDims: 1536,
		},
		{
			name:    "unknown model",
			cfg:     config.EmbedderConfig{APIKey: "test-key", Model: "word2vec"},
			wantErr: true,
			errMsg:  "unsupported embedding model",
		},
		{
			name:    "missing API key",
			cfg:     config.EmbedderConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder, err := NewEmbedder(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, embedder)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDims, embedder.Dimensions())
		})
	}
}
