package observability

import (
	"context"
	"testing"

	"github.com/casebook-ai/casebook/internal/log"
)

func TestSetup_DefaultEndpoint(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Setup(ctx, Config{
		Environment: "test",
		ServiceName: "casebook-test",
	}, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Setup() returned nil shutdown")
	}

	// No spans were recorded, so shutdown must succeed even though no
	// collector is listening.
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
}
