package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DefaultMaxChars bounds how much document text is sent to the model
const DefaultMaxChars = 30000

const defaultModel = "gpt-4o-mini"

const promptTemplate = `אתה מנתח מסמכים אקדמיים. נתח את הטקסט הבא וחלץ:
1. page_count - הערכה של מספר העמודים במסמך המקורי (בהתבסס על אורך הטקסט, בממוצע כ-500 מילים לעמוד)
2. topics - רשימה של 3-7 נושאים מרכזיים שמופיעים במסמך (בעברית)

החזר JSON בלבד בפורמט הבא, ללא טקסט נוסף:
{"page_count": מספר, "topics": ["נושא 1", "נושא 2", "נושא 3"]}

הטקסט:
%s`

// OpenAIConfig configures an OpenAIExtractor
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	MaxChars int
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExtractor asks an OpenAI-compatible chat model for document metadata
type OpenAIExtractor struct {
	client   chatClient
	model    string
	maxChars int
	logger   *slog.Logger
}

// NewOpenAIExtractor creates an extractor for any OpenAI-compatible endpoint
func NewOpenAIExtractor(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return newOpenAIExtractor(openai.NewClientWithConfig(clientConfig), cfg, logger), nil
}

func newOpenAIExtractor(client chatClient, cfg OpenAIConfig, logger *slog.Logger) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIExtractor{
		client:   client,
		model:    cfg.Model,
		maxChars: cfg.MaxChars,
		logger:   logger,
	}
}

// Enabled always returns true
func (e *OpenAIExtractor) Enabled() bool { return true }

// Extract sends the first maxChars characters of text to the model and
// parses its JSON reply.
func (e *OpenAIExtractor) Extract(ctx context.Context, text string) (*Metadata, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: e.Prompt(text)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	meta, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		e.logger.Warn("invalid metadata response", "error", err)
		return nil, err
	}

	e.logger.Info("extracted document metadata", "page_count", meta.PageCount, "topics", len(meta.Topics))
	return meta, nil
}

// Prompt builds the request prompt for text
func (e *OpenAIExtractor) Prompt(text string) string {
	runes := []rune(text)
	if len(runes) > e.maxChars {
		text = string(runes[:e.maxChars])
	}
	return fmt.Sprintf(promptTemplate, text)
}
