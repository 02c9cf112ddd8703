package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: config.LLMConfig{
				APIKey: "test-key",
			},
		},
		{
			name: "valid config with model",
			cfg: config.LLMConfig{
				APIKey: "test-key",
				Model:  "gpt-4o",
			},
		},
		{
			name:    "missing API key",
			cfg:     config.LLMConfig{},
			wantErr: true,
			errMsg:  "API key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"content": "Aria"}`,
			expected: `{"content": "Aria"}`,
		},
		{
			name:     "JSON with json code block",
			input:    "```json\n{\"content\": \"Aria\"}\n```",
			expected: `{"content": "Aria"}`,
		},
		{
			name:     "JSON with plain code block",
			input:    "```\n{\"content\": \"Aria\"}\n```",
			expected: `{"content": "Aria"}`,
		},
		{
			name:     "JSON with whitespace",
			input:    "  \n{\"content\": \"Aria\"}\n  ",
			expected: `{"content": "Aria"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanJSONResponse(tt.input))
		})
	}
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name     string
		response string
		current  string
		want     string
		wantErr  bool
	}{
		{
			name:     "changed content",
			response: `{"content": " Aria is queen. ", "changed": true}`,
			current:  "Aria is a girl.",
			want:     "Aria is queen.",
		},
		{
			name:     "changed flag missing",
			response: "```json\n{\"content\": \"Aria is queen.\"}\n```",
			current:  "Aria is a girl.",
			want:     "Aria is queen.",
		},
		{
			name:     "no change keeps current",
			response: `{"content": "Aria is a girl, again.", "changed": false}`,
			current:  "Aria is a girl.",
			want:     "Aria is a girl.",
		},
		{
			name:     "not JSON",
			response: "Sure! Here is the entry.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDraft(tt.response, tt.current)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
