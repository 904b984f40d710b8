// Package openai talks to OpenAI-compatible chat completion APIs (OpenAI, OpenRouter, Nebius).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// onlineSuffix switches OpenRouter-style providers to web-grounded answers.
const onlineSuffix = ":online"

// Chat is a chat completion provider using the OpenAI-compatible API.
type Chat struct {
	client    *openai.Client
	model     string
	maxTokens int
	user      string
	logger    *zap.Logger
}

// Config holds the chat provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	User      string
	Logger    *zap.Logger
}

// NewChat creates an OpenAI-compatible chat provider.
func NewChat(cfg *Config) *Chat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Chat{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		user:      cfg.User,
		logger:    logger.With(zap.String("component", "openai")),
	}
}

// Complete sends p and returns the first choice's text.
// Failures are *domain.ProviderError values.
func (c *Chat) Complete(ctx context.Context, p domain.Prompt) (string, error) {
	model := c.model
	if p.WebSearch && !strings.HasSuffix(model, onlineSuffix) {
		model += onlineSuffix
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.User})

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		User:     c.user,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &domain.ProviderError{Err: errors.New("empty completion")}
	}

	c.logger.Debug("completion received",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}

// parseAPIError classifies a client error into a *domain.ProviderError.
// 429 and 5xx are retryable, as are per-call timeouts and transport failures;
// other statuses (400/401/403) and caller cancellation are not.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, errors.New(apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = http.StatusText(reqErr.HTTPStatusCode)
		}
		return statusError(reqErr.HTTPStatusCode, errors.New(detail))
	}

	if errors.Is(err, context.Canceled) {
		return &domain.ProviderError{Err: err}
	}
	return &domain.ProviderError{Retryable: true, Err: err}
}

func statusError(status int, err error) *domain.ProviderError {
	return &domain.ProviderError{
		StatusCode: status,
		Retryable:  status == http.StatusTooManyRequests || status >= http.StatusInternalServerError,
		Err:        err,
	}
}

// extractDetail reads "detail" (Nebius) or "error.message" from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
