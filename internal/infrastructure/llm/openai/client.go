// Package openai provides a SnapshotDrafter implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/forklore-core/internal/domain/ports"
	"github.com/ersonp/forklore-core/internal/infrastructure/config"
)

const draftPrompt = `You maintain the wiki of a serialized story. You receive the current text of one wiki entry and the text of a newly published chapter.

Rewrite the entry so it is accurate as of the end of that chapter:
- keep everything in the current entry that is still true
- add what the chapter reveals about the subject of the entry
- never mention events from later chapters
- write in the same neutral, encyclopedic voice as the current entry

Return ONLY a valid JSON object, no other text:
{"content": "<the full updated entry>", "changed": true}

If the chapter says nothing new about the entry, return the current entry unchanged with "changed": false.`

const draftInput = `Entry: %s
Chapter: %d

Current entry:
%s

Chapter text:
%s`

var _ ports.SnapshotDrafter = (*Client)(nil)

// Client implements ports.SnapshotDrafter using OpenAI chat completions.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(cfg.APIKey)

	model := openai.GPT4oMini
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// DraftSnapshot proposes updated content for a wiki entry after a chapter.
// When the model reports no change, the current content is returned as is.
func (c *Client) DraftSnapshot(ctx context.Context, req ports.DraftRequest) (string, error) {
	current := req.CurrentContent
	if strings.TrimSpace(current) == "" {
		current = "(empty)"
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: draftPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(draftInput, req.EntryName, req.Chapter, current, req.ChapterText),
			},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return parseDraft(resp.Choices[0].Message.Content, req.CurrentContent)
}

// rawDraft is the JSON structure returned by the model.
type rawDraft struct {
	Content string `json:"content"`
	Changed *bool  `json:"changed"`
}

// parseDraft extracts the drafted content, falling back to current when the
// model reports no change.
func parseDraft(response, current string) (string, error) {
	content := cleanJSONResponse(response)

	var draft rawDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return "", fmt.Errorf("parsing draft JSON: %w (response: %s)", err, content)
	}
	if draft.Changed != nil && !*draft.Changed {
		return current, nil
	}

	return strings.TrimSpace(draft.Content), nil
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
