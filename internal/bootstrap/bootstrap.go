package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/ports"
	"github.com/kirillkom/docqa/internal/core/usecase"
	"github.com/kirillkom/docqa/internal/infrastructure/chunking"
	"github.com/kirillkom/docqa/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/docqa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/docqa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docqa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/docqa/internal/infrastructure/rerank/lexical"
	"github.com/kirillkom/docqa/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
	"github.com/kirillkom/docqa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/docqa/internal/infrastructure/vector/fsindex"
)

type App struct {
	Config config.Config

	Storage    ports.ObjectStorage
	Resilience *resilience.Executor
	// Events is nil unless NATS_URL is set.
	Events *nats.Publisher

	IngestUC *usecase.IngestDocumentUseCase
	QueryUC  *usecase.QueryUseCase

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	app.Resilience = executor

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            cfg.OllamaTimeout,
		Temperature:        cfg.LLMTemperature,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	indexes, err := fsindex.New(cfg.IndexRoot, embedder)
	if err != nil {
		return nil, fmt.Errorf("init index store: %w", err)
	}

	reranker, err := newReranker(cfg, executor)
	if err != nil {
		return nil, err
	}

	var catalog ports.DocumentCatalog
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
		repo := postgres.NewDocumentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		catalog = repo
	}

	var publisher ports.EventPublisher
	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closeFns = append(app.closeFns, queue.Close)
		app.Events = queue
		publisher = queue
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(
		pdftext.NewExtractor(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		indexes,
		embedder,
		catalog,
		publisher,
	)
	app.QueryUC = usecase.NewQueryUseCase(
		usecase.NewRetrievalEngine(indexes, embedder, reranker, cfg.RAGPerDocumentK, cfg.RAGTopK),
		usecase.NewAnswerComposer(generator),
	)

	ok = true
	return app, nil
}

func newReranker(cfg config.Config, executor *resilience.Executor) (ports.Reranker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.RerankBackend)) {
	case "", "tei":
		if strings.TrimSpace(cfg.RerankURL) == "" {
			return nil, fmt.Errorf("RERANK_URL is required for the tei rerank backend")
		}
		slog.Info("rerank_cross_encoder", "url", cfg.RerankURL, "model", cfg.RerankModel)
		return tei.New(cfg.RerankURL, tei.Options{
			Model:              cfg.RerankModel,
			Timeout:            cfg.RerankTimeout,
			ResilienceExecutor: executor,
		}), nil
	case "lexical":
		slog.Warn("rerank_lexical_fallback",
			"reason", "RERANK_BACKEND=lexical ranks passages by token overlap instead of a cross-encoder; answer quality drops",
		)
		return lexical.New(), nil
	default:
		return nil, fmt.Errorf("unknown RERANK_BACKEND %q (want tei or lexical)", cfg.RerankBackend)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
