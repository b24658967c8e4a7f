package services_test

import (
	"context"
	"testing"

	"archivist/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithNodeID(ctx, 42)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithRunID(ctx, "01HX")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.NodeIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected node id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "extract" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if run, ok := services.RunIDFromContext(ctx); !ok || run != "01HX" {
		t.Fatalf("unexpected run id: %v %v", run, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
