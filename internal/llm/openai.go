// Package llm sends a prepared conversation to a hosted chat-completion API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/8adimka/expert_consult/internal/chat/model"
	"github.com/8adimka/expert_consult/internal/config"
	"github.com/8adimka/expert_consult/internal/errorsx"
	"github.com/8adimka/expert_consult/internal/metrics"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request is a single completion call
type Request struct {
	Model        string
	Temperature  float64
	Conversation *model.Conversation
}

// OpenAICompleter performs chat completions through the OpenAI SDK.
// Every call is exactly one HTTP round trip: SDK retries are disabled.
type OpenAICompleter struct {
	cli     openai.Client
	metrics *metrics.Metrics
}

// NewOpenAICompleter builds a client from the LLM settings. Extra options are
// appended after the defaults, so tests can override the transport or URL.
func NewOpenAICompleter(cfg config.LLM, appMetrics *metrics.Metrics, opts ...option.RequestOption) *OpenAICompleter {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAICompleter{
		cli:     openai.NewClient(append(base, opts...)...),
		metrics: appMetrics,
	}
}

// Complete sends the conversation and returns the text of the first choice
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	if req.Conversation == nil || len(req.Conversation.Messages) == 0 {
		return "", fmt.Errorf("conversation has no messages: %w", errorsx.ErrInvalidInput)
	}

	msgs, err := toOpenAIMessages(req.Conversation.Messages)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	})
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordLLMRequest(ctx, req.Model, duration, err)
	}

	if err != nil {
		slog.ErrorContext(ctx, "OpenAI API call failed",
			"model", req.Model,
			"duration_ms", duration.Milliseconds(),
			"status_code", statusCode(err),
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errorsx.Timeout(err)
		}
		return "", errorsx.Upstream(err)
	}

	if len(resp.Choices) == 0 {
		return "", errorsx.Upstream(errors.New("no choices returned by OpenAI"))
	}

	if c.metrics != nil {
		c.metrics.RecordTokenUsage(ctx, req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	slog.InfoContext(ctx, "OpenAI API call completed",
		"model", req.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", duration.Milliseconds(),
	)

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []model.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, m := range messages {
		if !m.Role.Valid() {
			return nil, errorsx.Wrapf(errorsx.ErrInvalidInput, "messages[%d]: invalid role %q", i, m.Role)
		}
		switch m.Role {
		case model.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case model.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case model.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return msgs, nil
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
