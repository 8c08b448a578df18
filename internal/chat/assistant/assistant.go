// Package assistant answers a single question in the voice of the selected persona.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/8adimka/expert_consult/internal/chat/model"
	"github.com/8adimka/expert_consult/internal/chat/persona"
	"github.com/8adimka/expert_consult/internal/config"
	"github.com/8adimka/expert_consult/internal/llm"
	"github.com/8adimka/expert_consult/internal/metrics"
	appotel "github.com/8adimka/expert_consult/internal/otel"
	"github.com/8adimka/expert_consult/internal/redisx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	EmptyQuestionMessage     = "Question is empty. Please enter some text."
	MissingCredentialMessage = "OPENAI_API_KEY is not set. Check your .env file or the hosting platform's secret settings."
)

// Kind tells the caller how to present a Reply
type Kind string

const (
	KindAnswer            Kind = "answer"
	KindEmptyQuestion     Kind = "empty_question"
	KindMissingCredential Kind = "missing_credential"
)

// Reply is either the model's answer or one of the local guard messages
type Reply struct {
	Kind   Kind
	Text   string
	Cached bool
}

// Completer performs one blocking chat-completion call
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// AnswerCache is satisfied by *redisx.Cache
type AnswerCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	GenerateKey(prefix string, parts ...string) string
}

// History is satisfied by *model.Repository
type History interface {
	RecordConsultation(ctx context.Context, c *model.Consultation) error
}

type Option func(*Assistant)

// WithCache reuses answers for identical persona, model and question
func WithCache(cache AnswerCache) Option {
	return func(a *Assistant) { a.cache = cache }
}

// WithHistory records every answered consultation
func WithHistory(h History) Option {
	return func(a *Assistant) { a.history = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// Assistant is immutable after New and safe for concurrent use
type Assistant struct {
	cfg     config.LLM
	cli     Completer
	cache   AnswerCache
	history History
	metrics *metrics.Metrics
}

func New(cfg config.LLM, cli Completer, opts ...Option) *Assistant {
	a := &Assistant{cfg: cfg, cli: cli}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildConversation returns the instruction followed by the question, verbatim
func BuildConversation(question, instruction string) *model.Conversation {
	return model.NewConversation(instruction, question)
}

// Answer checks the credential, then the question, then makes exactly one
// completion call. Service failures are returned as errors, never as a Reply.
func (a *Assistant) Answer(ctx context.Context, question, choice string) (Reply, error) {
	personaKey := "unknown"
	if p, ok := persona.Parse(choice); ok {
		personaKey = p.Key()
	}

	ctx, span := appotel.GetTracer().Start(ctx, "assistant.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("persona", personaKey))

	if !a.cfg.HasCredential() {
		a.record(ctx, personaKey, string(KindMissingCredential), false)
		return Reply{Kind: KindMissingCredential, Text: MissingCredentialMessage}, nil
	}

	if strings.TrimSpace(question) == "" {
		a.record(ctx, personaKey, string(KindEmptyQuestion), false)
		return Reply{Kind: KindEmptyQuestion, Text: EmptyQuestionMessage}, nil
	}

	instruction := persona.Resolve(choice)
	cacheKey := ""
	if a.cache != nil {
		cacheKey = a.cache.GenerateKey("answer", a.cfg.Model, fmt.Sprintf("%g", a.cfg.Temperature), instruction, question)

		var cached string
		if err := a.cache.Get(ctx, cacheKey, &cached); err == nil {
			slog.InfoContext(ctx, "Answer retrieved from cache", "persona", personaKey)
			a.record(ctx, personaKey, string(KindAnswer), true)
			a.remember(ctx, &model.Consultation{
				Persona:  personaKey,
				Question: question,
				Answer:   cached,
				Model:    a.cfg.Model,
				Cached:   true,
			})
			return Reply{Kind: KindAnswer, Text: cached, Cached: true}, nil
		} else if !errors.Is(err, redisx.ErrCacheMiss) {
			slog.WarnContext(ctx, "Cache error, proceeding without cache", "error", err)
		}
	}

	slog.InfoContext(ctx, "Generating answer",
		"persona", personaKey,
		"model", a.cfg.Model,
		"question_length", len(question),
	)

	start := time.Now()
	text, err := a.cli.Complete(ctx, llm.Request{
		Model:        a.cfg.Model,
		Temperature:  a.cfg.Temperature,
		Conversation: BuildConversation(question, instruction),
	})
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		a.record(ctx, personaKey, "error", false)
		return Reply{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	a.record(ctx, personaKey, string(KindAnswer), false)

	if a.cache != nil {
		if err := a.cache.Set(ctx, cacheKey, text); err != nil {
			slog.WarnContext(ctx, "Failed to cache answer", "error", err)
		}
	}

	a.remember(ctx, &model.Consultation{
		Persona:    personaKey,
		Question:   question,
		Answer:     text,
		Model:      a.cfg.Model,
		DurationMs: duration.Milliseconds(),
	})

	return Reply{Kind: KindAnswer, Text: text}, nil
}

func (a *Assistant) record(ctx context.Context, personaKey, outcome string, cached bool) {
	if a.metrics != nil {
		a.metrics.RecordConsultation(ctx, personaKey, outcome, cached)
	}
}

// remember stores c when history is enabled; failures are logged only
func (a *Assistant) remember(ctx context.Context, c *model.Consultation) {
	if a.history == nil {
		return
	}
	if err := a.history.RecordConsultation(ctx, c); err != nil {
		slog.WarnContext(ctx, "Failed to record consultation", "error", err)
	}
}
