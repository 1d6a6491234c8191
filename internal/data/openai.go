package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

const defaultCompletionModel = "gpt-4.1-mini"

// OpenAIConfig configures the completion client
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty for the OpenAI default
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// openAIRepo implements the completion repository with an OpenAI-compatible API
type openAIRepo struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIRepo returns nil when no API key is configured
func NewOpenAIRepo(cfg OpenAIConfig) repo.CompletionRepo {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = defaultCompletionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &openAIRepo{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
	}
}

// Complete sends one system + user exchange and returns the reply text
func (r *openAIRepo) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", domain.ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", domain.ErrUpstream)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
