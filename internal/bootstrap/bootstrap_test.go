package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/infrastructure/rerank/lexical"
	"github.com/kirillkom/docqa/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

func TestResilienceConfigMapsSettings(t *testing.T) {
	cfg := config.Config{
		ResilienceRetryMaxAttempts:    3,
		ResilienceRetryInitialBackoff: 50 * time.Millisecond,
		ResilienceRetryMaxBackoff:     time.Second,
		ResilienceBreakerEnabled:      true,
		ResilienceBreakerMinRequests:  7,
		ResilienceBreakerFailureRatio: 0.5,
		ResilienceBreakerOpenTimeout:  10 * time.Second,
	}

	out := resilienceConfig(cfg)
	if out.RetryMaxAttempts != 3 || out.BreakerMinRequests != 7 || out.BreakerFailureRatio != 0.5 {
		t.Fatalf("unexpected resilience config: %+v", out)
	}
	if out.BreakerOpenTimeout != 10*time.Second || !out.BreakerEnabled {
		t.Fatalf("unexpected breaker config: %+v", out)
	}
}

func TestNewWithoutOptionalBackends(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		StoragePath:      filepath.Join(dir, "uploads"),
		IndexRoot:        filepath.Join(dir, "indexes"),
		OllamaURL:        "http://127.0.0.1:1",
		OllamaGenModel:   "gen",
		OllamaEmbedModel: "embed",
		ChunkSize:        1000,
		ChunkOverlap:     100,
		RerankBackend:    "tei",
		RerankURL:        "http://127.0.0.1:1",
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Events != nil {
		t.Fatalf("expected events to be disabled without NATS_URL")
	}
	ids, err := app.IngestUC.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty index root, got %v", ids)
	}
	if open := app.Resilience.OpenOperations(); len(open) != 0 {
		t.Fatalf("expected no open circuits, got %v", open)
	}
}

func TestNewRerankerSelectsBackend(t *testing.T) {
	exec := resilience.NewExecutor(resilience.DefaultConfig())

	reranker, err := newReranker(config.Config{RerankBackend: "tei", RerankURL: "http://tei:80"}, exec)
	if err != nil {
		t.Fatalf("tei backend error = %v", err)
	}
	if _, ok := reranker.(*tei.Client); !ok {
		t.Fatalf("expected cross-encoder client, got %T", reranker)
	}

	reranker, err = newReranker(config.Config{RerankBackend: "lexical"}, exec)
	if err != nil {
		t.Fatalf("lexical backend error = %v", err)
	}
	if _, ok := reranker.(*lexical.Reranker); !ok {
		t.Fatalf("expected lexical reranker, got %T", reranker)
	}

	if _, err := newReranker(config.Config{RerankBackend: "tei"}, exec); err == nil {
		t.Fatalf("expected error for tei backend without URL")
	}
	if _, err := newReranker(config.Config{RerankBackend: "cohere", RerankURL: "http://x"}, exec); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
