package services_test

import (
	"context"
	"testing"

	"ytarchive/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithVideoID(ctx, "abc")
	ctx = services.WithPass(ctx, "recovery")
	ctx = services.WithAccount(ctx, "upload-a")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.VideoIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected video id: %v %v", id, ok)
	}
	if pass, ok := services.PassFromContext(ctx); !ok || pass != "recovery" {
		t.Fatalf("unexpected pass: %v %v", pass, ok)
	}
	if acct, ok := services.AccountFromContext(ctx); !ok || acct != "upload-a" {
		t.Fatalf("unexpected account: %v %v", acct, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPass(ctx, "")
	ctx = services.WithVideoID(ctx, "")
	if _, ok := services.PassFromContext(ctx); ok {
		t.Fatal("expected no pass value")
	}
	if _, ok := services.VideoIDFromContext(ctx); ok {
		t.Fatal("expected no video id value")
	}
}
