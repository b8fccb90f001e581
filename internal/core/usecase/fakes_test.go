package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

type embedderFake struct {
	queries []string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *embedderFake) ModelName() string { return "embed-fake" }

type indexFake struct {
	id     string
	hits   []domain.ScoredChunk
	limit  int
	err    error
	called int
}

func (f *indexFake) DocumentID() string { return f.id }

func (f *indexFake) Meta() domain.IndexMeta {
	return domain.IndexMeta{DocumentID: f.id, EmbedModel: "fake-embed", ChunkCount: len(f.hits)}
}

func (f *indexFake) Search(_ context.Context, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	f.called++
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type indexStoreFake struct {
	indexes  map[string]*indexFake
	loadErr  error
	loaded   []string
	built    map[string][]domain.Chunk
	buildErr error
}

func newIndexStoreFake(indexes ...*indexFake) *indexStoreFake {
	store := &indexStoreFake{
		indexes: make(map[string]*indexFake),
		built:   make(map[string][]domain.Chunk),
	}
	for _, idx := range indexes {
		store.indexes[idx.id] = idx
	}
	return store
}

func (f *indexStoreFake) Build(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if f.buildErr != nil {
		return f.buildErr
	}
	f.built[documentID] = chunks
	return nil
}

func (f *indexStoreFake) Load(_ context.Context, documentID string) (ports.DocumentIndex, error) {
	f.loaded = append(f.loaded, documentID)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	idx, ok := f.indexes[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "load index", errors.New(documentID))
	}
	return idx, nil
}

func (f *indexStoreFake) ListIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.indexes))
	for id := range f.indexes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// rerankerFake scores texts by a lookup table, falling back to zero.
type rerankerFake struct {
	scores map[string]float64
	calls  int
	texts  []string
	err    error
}

func (f *rerankerFake) Rerank(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	f.texts = append([]string(nil), texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = f.scores[text]
	}
	return out, nil
}

type generatorFake struct {
	output string
	err    error
	prompt string
	calls  int
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func hitsFor(texts ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = domain.ScoredChunk{
			Chunk: domain.Chunk{Index: i, PageNumber: i + 1, Text: text},
			Score: 1 - float64(i)*0.01,
		}
	}
	return out
}

func chunkTexts(chunks []domain.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Source + ":" + c.Chunk.Text
	}
	return strings.Join(parts, ",")
}
