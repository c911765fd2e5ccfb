// Package llm wraps the text-generation backend used for questions, hints and doubts.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"github.com/sashabaranov/go-openai"
)

// TextGenerator turns a prompt into a single completion.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const defaultSystemPrompt = "Você é um especialista no regulamento do programa e cria quizzes " +
	"educativos em português do Brasil. Responda somente com o conteúdo pedido."

type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	systemPrompt string
	temperature  float32
}

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float32
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New(errors.ErrCodeValidation, "openai api key is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}

	logger.Info("Initializing OpenAI generator", "model", opts.Model)
	return &OpenAIGenerator{
		client:       openai.NewClientWithConfig(cfg),
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
		temperature:  opts.Temperature,
	}, nil
}

func (g *OpenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	metrics.ObserveCompletion(g.model, time.Since(start), err)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGenerationFailed, "openai completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeGenerationFailed, "openai returned no choices")
	}

	logger.Debug("Received completion", "model", g.model, "finish_reason", resp.Choices[0].FinishReason)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
