// Package observability records the lifecycle of every query: an in-memory
// trace per query, aggregate metrics per strategy, and optional OpenTelemetry
// spans for external tracing backends.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/casebook-ai/casebook/internal/rag"
)

// Trace statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Trace is the recorded lifecycle of one query.
type Trace struct {
	ID            string        `json:"trace_id"`
	Question      string        `json:"query"`
	Config        rag.Config    `json:"config"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at,omitzero"`
	Duration      time.Duration `json:"duration"`
	Status        string        `json:"status"`
	TokensUsed    int           `json:"tokens_used"`
	DocsRetrieved int           `json:"docs_retrieved"`
	ContextLength int           `json:"context_length"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Metric is the flattened per-query record the summaries aggregate over.
type Metric struct {
	TraceID    string        `json:"trace_id"`
	Question   string        `json:"query"`
	Strategy   rag.Strategy  `json:"strategy"`
	Duration   time.Duration `json:"duration"`
	TokensUsed int           `json:"tokens_used"`
	Docs       int           `json:"num_documents"`
	Timestamp  time.Time     `json:"timestamp"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

// Tracker implements rag.Observer. It is safe for concurrent use.
type Tracker struct {
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.Mutex
	traces  map[string]*Trace
	spans   map[string]trace.Span
	metrics []Metric
}

// NewTracker creates an empty Tracker. Spans go through the globally
// registered tracer provider, so without Setup they are no-ops.
func NewTracker() *Tracker {
	return &Tracker{
		tracer: otel.Tracer("casebook/rag"),
		now:    time.Now,
		traces: make(map[string]*Trace),
		spans:  make(map[string]trace.Span),
	}
}

// StartTrace opens a trace for a query and returns its ID.
func (t *Tracker) StartTrace(question string, cfg rag.Config) string {
	id := uuid.NewString()

	_, span := t.tracer.Start(context.Background(), "rag.query",
		trace.WithAttributes(
			attribute.String("trace_id", id),
			attribute.String("rag.strategy", string(cfg.Strategy)),
			attribute.Int("rag.top_k", cfg.TopK),
		))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces[id] = &Trace{
		ID:        id,
		Question:  question,
		Config:    cfg,
		StartedAt: t.now(),
		Status:    StatusStarted,
	}
	t.spans[id] = span
	return id
}

// EndTrace closes a trace as completed. Unknown IDs are ignored.
func (t *Tracker) EndTrace(id string, resp *rag.Response, docsRetrieved int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.traces[id]
	if !ok {
		return
	}
	tr.EndedAt = t.now()
	tr.Duration = tr.EndedAt.Sub(tr.StartedAt)
	tr.Status = StatusCompleted
	tr.DocsRetrieved = docsRetrieved
	if resp != nil {
		tr.TokensUsed = resp.TokensUsed
		tr.ContextLength = resp.ContextLength
	}

	t.metrics = append(t.metrics, Metric{
		TraceID:    id,
		Question:   tr.Question,
		Strategy:   tr.Config.Strategy,
		Duration:   tr.Duration,
		TokensUsed: tr.TokensUsed,
		Docs:       docsRetrieved,
		Timestamp:  tr.StartedAt,
		Success:    true,
	})

	if span, ok := t.spans[id]; ok {
		span.SetAttributes(
			attribute.Int64("rag.duration_ms", tr.Duration.Milliseconds()),
			attribute.Int("rag.tokens_used", tr.TokensUsed),
			attribute.Int("rag.num_documents", docsRetrieved),
		)
		span.End()
		delete(t.spans, id)
	}
}

// LogError closes a trace as failed. Unknown IDs are ignored.
func (t *Tracker) LogError(id string, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.traces[id]
	if !ok {
		return
	}
	tr.EndedAt = t.now()
	tr.Duration = tr.EndedAt.Sub(tr.StartedAt)
	tr.Status = StatusError
	tr.ErrorMessage = message

	t.metrics = append(t.metrics, Metric{
		TraceID:   id,
		Question:  tr.Question,
		Strategy:  tr.Config.Strategy,
		Duration:  tr.Duration,
		Timestamp: tr.StartedAt,
		Success:   false,
		Error:     message,
	})

	if span, ok := t.spans[id]; ok {
		span.SetStatus(codes.Error, message)
		span.End()
		delete(t.spans, id)
	}
}

// Trace returns one trace by ID.
func (t *Tracker) Trace(id string) (Trace, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.traces[id]
	if !ok {
		return Trace{}, false
	}
	return *tr, true
}

// Traces returns a snapshot of all recorded traces.
func (t *Tracker) Traces() []Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Trace, 0, len(t.traces))
	for _, tr := range t.traces {
		out = append(out, *tr)
	}
	return out
}

// StrategySummary aggregates the queries that used one strategy.
type StrategySummary struct {
	Count       int           `json:"count"`
	Successes   int           `json:"successes"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	AvgTokens   float64       `json:"avg_tokens"`
}

// Summary aggregates all recorded queries.
type Summary struct {
	TotalQueries      int                             `json:"total_queries"`
	SuccessfulQueries int                             `json:"successful_queries"`
	SuccessRate       float64                         `json:"success_rate"`
	AvgDuration       time.Duration                   `json:"avg_duration"`
	AvgTokens         float64                         `json:"avg_tokens"`
	ByStrategy        map[rag.Strategy]StrategySummary `json:"strategy_breakdown"`
}

// Summarize computes aggregate metrics. Averages cover successful queries
// only; counts and rates cover everything.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	sum := Summary{ByStrategy: make(map[rag.Strategy]StrategySummary)}
	if len(t.metrics) == 0 {
		return sum
	}

	var okDur time.Duration
	var okTokens int
	for _, m := range t.metrics {
		sum.TotalQueries++
		s := sum.ByStrategy[m.Strategy]
		s.Count++
		if m.Success {
			sum.SuccessfulQueries++
			okDur += m.Duration
			okTokens += m.TokensUsed
			s.Successes++
		}
		sum.ByStrategy[m.Strategy] = s
	}

	sum.SuccessRate = float64(sum.SuccessfulQueries) / float64(sum.TotalQueries)
	if sum.SuccessfulQueries > 0 {
		sum.AvgDuration = okDur / time.Duration(sum.SuccessfulQueries)
		sum.AvgTokens = float64(okTokens) / float64(sum.SuccessfulQueries)
	}

	for strategy, s := range sum.ByStrategy {
		var dur time.Duration
		var tokens int
		for _, m := range t.metrics {
			if m.Strategy != strategy {
				continue
			}
			dur += m.Duration
			tokens += m.TokensUsed
		}
		s.SuccessRate = float64(s.Successes) / float64(s.Count)
		s.AvgDuration = dur / time.Duration(s.Count)
		s.AvgTokens = float64(tokens) / float64(s.Count)
		sum.ByStrategy[strategy] = s
	}
	return sum
}

// ExportJSON renders all traces and metrics for offline inspection.
func (t *Tracker) ExportJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload := struct {
		Traces     map[string]*Trace `json:"traces"`
		Metrics    []Metric          `json:"metrics"`
		ExportedAt time.Time         `json:"exported_at"`
	}{
		Traces:     t.traces,
		Metrics:    t.metrics,
		ExportedAt: t.now(),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding traces: %w", err)
	}
	return data, nil
}

// Clear drops all recorded traces and metrics. In-flight spans are ended.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, span := range t.spans {
		span.End()
		delete(t.spans, id)
	}
	t.traces = make(map[string]*Trace)
	t.metrics = nil
}
