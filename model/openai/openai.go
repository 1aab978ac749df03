// Package openai adapts the OpenAI Chat Completions API to the
// model.Generator contract used by worker agents.
package openai

import (
	"context"

	"github.com/hupe1980/agentswarm/logging"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI generator. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Logger              logging.Logger
}

// Generator wraps the OpenAI Chat Completions API behind model.Generator.
type Generator struct {
	client *openai.Client
	opts   Options
}

// New creates a Generator using the official client.
func New(optFns ...func(o *Options)) *Generator {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Generator from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Generator{client: client, opts: opts}
}

// Generate implements model.Generator via a non-streaming completion,
// returning the first choice's message content.
func (g *Generator) Generate(ctx context.Context, prompt, system string) (string, bool) {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		g.opts.Logger.Warn("openai api error", "model", g.opts.Model, "error", err)
		return "", false
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", false
	}

	return resp.Choices[0].Message.Content, true
}
