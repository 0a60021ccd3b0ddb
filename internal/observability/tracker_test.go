package observability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/casebook-ai/casebook/internal/rag"
)

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	cfg := rag.DefaultConfig()

	id := tr.StartTrace("how did Acme save fuel?", cfg)
	if id == "" {
		t.Fatal("empty trace ID")
	}

	got, ok := tr.Trace(id)
	if !ok {
		t.Fatal("trace not recorded")
	}
	if got.Status != StatusStarted || got.Question != "how did Acme save fuel?" {
		t.Errorf("trace = %+v", got)
	}

	resp := &rag.Response{TokensUsed: 120, ContextLength: 900}
	tr.EndTrace(id, resp, 4)

	got, _ = tr.Trace(id)
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.TokensUsed != 120 || got.DocsRetrieved != 4 || got.ContextLength != 900 {
		t.Errorf("trace = %+v", got)
	}
}

func TestTracker_DistinctIDs(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	cfg := rag.DefaultConfig()
	a := tr.StartTrace("q1", cfg)
	b := tr.StartTrace("q2", cfg)
	if a == b {
		t.Errorf("trace IDs collide: %s", a)
	}
}

func TestTracker_LogError(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	id := tr.StartTrace("q", rag.DefaultConfig())
	tr.LogError(id, "document index unavailable")

	got, _ := tr.Trace(id)
	if got.Status != StatusError || got.ErrorMessage != "document index unavailable" {
		t.Errorf("trace = %+v", got)
	}

	sum := tr.Summarize()
	if sum.TotalQueries != 1 || sum.SuccessfulQueries != 0 || sum.SuccessRate != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestTracker_UnknownIDIgnored(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.EndTrace("nope", &rag.Response{}, 0)
	tr.LogError("nope", "msg")
	if sum := tr.Summarize(); sum.TotalQueries != 0 {
		t.Errorf("summary = %+v, want empty", sum)
	}
}

func TestTracker_Summarize(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	// Deterministic clock: each call advances one second.
	var tick int
	tr.now = func() time.Time {
		tick++
		return time.Unix(int64(tick), 0)
	}

	naive := rag.DefaultConfig()
	agentic := rag.DefaultConfig()
	agentic.Strategy = rag.StrategyAgentic

	id1 := tr.StartTrace("q1", naive)
	tr.EndTrace(id1, &rag.Response{TokensUsed: 100}, 5)

	id2 := tr.StartTrace("q2", agentic)
	tr.EndTrace(id2, &rag.Response{TokensUsed: 300}, 8)

	id3 := tr.StartTrace("q3", naive)
	tr.LogError(id3, "boom")

	sum := tr.Summarize()
	if sum.TotalQueries != 3 || sum.SuccessfulQueries != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if want := 2.0 / 3.0; sum.SuccessRate != want {
		t.Errorf("success rate = %v, want %v", sum.SuccessRate, want)
	}
	if sum.AvgTokens != 200 {
		t.Errorf("avg tokens = %v, want 200", sum.AvgTokens)
	}

	ns := sum.ByStrategy[rag.StrategyNaive]
	if ns.Count != 2 || ns.Successes != 1 || ns.SuccessRate != 0.5 {
		t.Errorf("naive breakdown = %+v", ns)
	}
	as := sum.ByStrategy[rag.StrategyAgentic]
	if as.Count != 1 || as.SuccessRate != 1 || as.AvgTokens != 300 {
		t.Errorf("agentic breakdown = %+v", as)
	}
}

func TestTracker_ExportJSON(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	id := tr.StartTrace("q", rag.DefaultConfig())
	tr.EndTrace(id, &rag.Response{TokensUsed: 10}, 1)

	data, err := tr.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON() error: %v", err)
	}

	var payload struct {
		Traces  map[string]Trace `json:"traces"`
		Metrics []Metric         `json:"metrics"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(payload.Traces) != 1 || len(payload.Metrics) != 1 {
		t.Errorf("export = %d traces, %d metrics", len(payload.Traces), len(payload.Metrics))
	}
}

func TestTracker_Clear(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	id := tr.StartTrace("q", rag.DefaultConfig())
	tr.EndTrace(id, &rag.Response{}, 0)

	tr.Clear()
	if len(tr.Traces()) != 0 {
		t.Error("traces survived Clear")
	}
	if sum := tr.Summarize(); sum.TotalQueries != 0 {
		t.Errorf("summary after Clear = %+v", sum)
	}
}
