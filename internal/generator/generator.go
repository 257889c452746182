// Package generator turns a short description into a landing page through an
// OpenAI compatible chat completion endpoint.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"pagesmith/internal/config"
	"pagesmith/internal/sanitize"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("generator API key not configured")
	// ErrEmptyResponse is returned when the model produced no content.
	ErrEmptyResponse = errors.New("model returned no content")
	// ErrInvalidOutput is returned when the generated page fails validation.
	ErrInvalidOutput = errors.New("generated HTML validation failed")
)

// Result is a generated page.
type Result struct {
	HTML         string `json:"html"`
	Model        string `json:"model"`
	FinishReason string `json:"finishReason,omitempty"`
	TotalTokens  int64  `json:"totalTokens,omitempty"`
}

// Generator produces landing pages.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	configured  bool
	log         *zap.Logger
}

// New creates a Generator from cfg. Extra options are passed to the client
// after the configured ones.
func New(cfg config.GeneratorConfig, log *zap.Logger, opts ...option.RequestOption) *Generator {
	if log == nil {
		log = zap.NewNop()
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	clientOpts = append(clientOpts, opts...)

	return &Generator{
		client:      openai.NewClient(clientOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		configured:  cfg.APIKey != "",
		log:         log.Named("generator"),
	}
}

// Generate validates prompt, asks the model for a page, and returns it
// cleaned of code fences, wrapped into a full document and validated.
// Prompt problems are reported as *sanitize.ValidationError.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	prompt, err := sanitize.Prompt(prompt)
	if err != nil {
		return nil, err
	}
	if !g.configured {
		return nil, ErrNotConfigured
	}

	g.log.Info("Generating landing page", zap.String("prompt", preview(prompt, 100)), zap.String("model", g.model))

	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(prompt)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(g.maxTokens)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate landing page: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	page := sanitize.Wrap(sanitize.StripFences(resp.Choices[0].Message.Content))
	if err := sanitize.Validate(page); err != nil {
		g.log.Warn("Generated page rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, err)
	}

	result := &Result{
		HTML:         page,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	g.log.Debug("Landing page generated", zap.Int("bytes", len(page)), zap.Int64("tokens", result.TotalTokens))
	return result, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
