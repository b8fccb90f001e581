package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	DefaultPerDocumentK = 10
	DefaultTopK         = 5
)

// RetrievalEngine searches every selected document index separately, pools
// the hits and orders them with the cross-encoder.
type RetrievalEngine struct {
	indexes      ports.IndexStore
	embedder     ports.Embedder
	reranker     ports.Reranker
	perDocumentK int
	topK         int
}

func NewRetrievalEngine(
	indexes ports.IndexStore,
	embedder ports.Embedder,
	reranker ports.Reranker,
	perDocumentK int,
	topK int,
) *RetrievalEngine {
	if perDocumentK <= 0 {
		perDocumentK = DefaultPerDocumentK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &RetrievalEngine{
		indexes:      indexes,
		embedder:     embedder,
		reranker:     reranker,
		perDocumentK: perDocumentK,
		topK:         topK,
	}
}

func (e *RetrievalEngine) Retrieve(ctx context.Context, question string, documentIDs []string) ([]domain.RetrievedChunk, error) {
	if len(documentIDs) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	loaded, err := e.loadIndexes(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	queryVector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	pool := make([]domain.RetrievedChunk, 0, len(loaded)*e.perDocumentK)
	for _, index := range loaded {
		hits, err := index.Search(ctx, queryVector, e.perDocumentK)
		if err != nil {
			return nil, fmt.Errorf("search index %s: %w", index.DocumentID(), err)
		}
		for _, hit := range hits {
			pool = append(pool, domain.RetrievedChunk{
				Chunk:  hit.Chunk,
				Source: index.DocumentID(),
				Score:  hit.Score,
			})
		}
	}
	if len(pool) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	return e.rerank(ctx, question, pool)
}

func (e *RetrievalEngine) loadIndexes(ctx context.Context, documentIDs []string) ([]ports.DocumentIndex, error) {
	out := make([]ports.DocumentIndex, 0, len(documentIDs))
	for _, id := range documentIDs {
		id = strings.TrimSpace(id)
		index, err := e.indexes.Load(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				slog.Warn("document_index_missing", "document_id", id)
				continue
			}
			return nil, fmt.Errorf("load index %s: %w", id, err)
		}
		out = append(out, index)
	}
	return out, nil
}

func (e *RetrievalEngine) rerank(ctx context.Context, question string, pool []domain.RetrievedChunk) ([]domain.RetrievedChunk, error) {
	texts := make([]string, len(pool))
	for i := range pool {
		texts[i] = pool[i].Chunk.Text
	}

	scores, err := e.reranker.Rerank(ctx, question, texts)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}
	if len(scores) != len(pool) {
		return nil, fmt.Errorf("rerank candidates: got %d scores for %d texts", len(scores), len(pool))
	}

	ranked := make([]domain.RetrievedChunk, len(pool))
	for i := range pool {
		ranked[i] = pool[i]
		ranked[i].Score = scores[i]
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > e.topK {
		ranked = ranked[:e.topK]
	}
	return ranked, nil
}
