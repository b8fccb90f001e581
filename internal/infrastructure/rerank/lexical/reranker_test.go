package lexical

import (
	"context"
	"testing"
)

func TestRerankPrefersOverlappingText(t *testing.T) {
	r := New()
	scores, err := r.Rerank(context.Background(), "What is the refund policy?", []string{
		"Shipping takes five days.",
		"The refund policy allows returns within 30 days.",
		"",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected aligned scores, got %v", scores)
	}
	if scores[1] <= scores[0] {
		t.Fatalf("expected refund passage to win, got %v", scores)
	}
	if scores[2] != 0 {
		t.Fatalf("expected zero for empty text, got %v", scores[2])
	}
}

func TestRerankIsCaseInsensitive(t *testing.T) {
	scores, err := New().Rerank(context.Background(), "ALPHA beta", []string{"alpha BETA"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores[0] != 1 {
		t.Fatalf("expected full match score 1, got %v", scores[0])
	}
}

func TestRerankHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Rerank(ctx, "q", []string{"q"}); err == nil {
		t.Fatalf("expected context error")
	}
}
