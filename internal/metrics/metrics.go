package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	llmRequestsTotal   metric.Int64Counter
	llmRequestDuration metric.Float64Histogram
	tokenUsageTotal    metric.Int64Counter

	consultationsTotal metric.Int64Counter
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_server_latency_ms",
		metric.WithDescription("HTTP request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	llmRequestsTotal, err := meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total chat-completion requests sent to the LLM provider"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	llmRequestDuration, err := meter.Float64Histogram(
		"llm_request_duration_ms",
		metric.WithDescription("Chat-completion request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tokenUsageTotal, err := meter.Int64Counter(
		"token_usage_total",
		metric.WithDescription("Tokens reported by the LLM provider"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	consultationsTotal, err := meter.Int64Counter(
		"consultations_total",
		metric.WithDescription("Submitted questions by persona and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		httpRequestsTotal:   httpRequestsTotal,
		httpRequestDuration: httpRequestDuration,
		llmRequestsTotal:    llmRequestsTotal,
		llmRequestDuration:  llmRequestDuration,
		tokenUsageTotal:     tokenUsageTotal,
		consultationsTotal:  consultationsTotal,
	}, nil
}

// HTTPMetricsMiddleware returns middleware for collecting HTTP metrics
func (m *Metrics) HTTPMetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / 1e6
			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
				attribute.String("status_code", strconv.Itoa(rw.statusCode)),
			)

			m.httpRequestsTotal.Add(r.Context(), 1, attrs)
			m.httpRequestDuration.Record(r.Context(), durationMs, attrs)
		})
	}
}

// RecordLLMRequest records one chat-completion round trip
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	m.llmRequestsTotal.Add(ctx, 1, attrs)
	m.llmRequestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTokenUsage records token usage metrics
func (m *Metrics) RecordTokenUsage(ctx context.Context, model string, promptTokens, completionTokens int64) {
	m.tokenUsageTotal.Add(ctx, promptTokens, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("token_type", "prompt"),
	))
	m.tokenUsageTotal.Add(ctx, completionTokens, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("token_type", "completion"),
	))
}

// RecordConsultation counts a submitted question by persona and outcome
func (m *Metrics) RecordConsultation(ctx context.Context, persona, outcome string, cached bool) {
	m.consultationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("persona", persona),
		attribute.String("outcome", outcome),
		attribute.Bool("cached", cached),
	))
}

// responseWriter captures the status code for metrics
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
