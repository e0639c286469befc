package entities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/starford/vaultgraph/internal/models"
)

// DefaultModel is used when AnthropicConfig.Model is empty.
const DefaultModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures the Messages API detector.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxContent int
	MaxTokens  int64
}

// AnthropicDetector asks a Claude model for entities as JSON.
type AnthropicDetector struct {
	client     anthropic.Client
	model      string
	maxContent int
	maxTokens  int64
}

// NewAnthropic builds a detector. An empty API key is an error.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicDetector, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("entities: anthropic api key is empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxContent <= 0 {
		cfg.MaxContent = 8000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &AnthropicDetector{
		client:     anthropic.NewClient(opts...),
		model:      cfg.Model,
		maxContent: cfg.MaxContent,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

const systemPrompt = "You are an expert at analyzing text and identifying entities and relationships. " +
	"Extract entities and their relationships from the given text and answer with JSON only."

func (d *AnthropicDetector) Detect(ctx context.Context, note *models.ParsedNote) (*models.DetectionResult, error) {
	msg, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(d.model),
		MaxTokens:   d.maxTokens,
		Temperature: anthropic.Float(0.1),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(d.prompt(note))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("entities: anthropic request: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return parseResponse(sb.String())
}

func (d *AnthropicDetector) prompt(note *models.ParsedNote) string {
	content := note.Body
	if r := []rune(content); len(r) > d.maxContent {
		content = string(r[:d.maxContent])
	}
	return fmt.Sprintf(`Analyze the following note and extract entities and relationships.

Note Title: %s
Note Content:
%s

Identify:
1. Entities (people, organizations, concepts, locations, books, projects, meetings, topics)
2. Relationships between entities

Return JSON in exactly this shape:
{
  "entities": [
    {"name": "Entity Name", "entity_type": "Person|Organization|Concept|Location|Book|Project|Meeting|Topic", "confidence": 0.9, "description": "short description"}
  ],
  "relationships": [
    {"source_entity": "Source Entity Name", "target_entity": "Target Entity Name", "relationship_type": "MENTIONS|RELATED_TO|WORKS_FOR|AUTHOR_OF|PART_OF|SIMILAR_TO|COLLABORATES_WITH|LOCATED_IN|DISCUSSES|ATTENDS", "confidence": 0.8}
  ]
}
`, note.Title, content)
}
