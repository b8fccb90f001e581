package fsindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/docqa/internal/core/domain"
)

var keywords = []string{"revenue", "hiring", "weather", "football"}

// keywordEmbedder maps text to a vector of keyword counts.
type keywordEmbedder struct {
	err error
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *keywordEmbedder) ModelName() string { return "keyword-test" }

func keywordVector(text string) []float32 {
	v := make([]float32, len(keywords))
	lower := strings.ToLower(text)
	for i, kw := range keywords {
		v[i] = float32(strings.Count(lower, kw)) + 0.01
	}
	return v
}

func newTestStore(t *testing.T, embedder *keywordEmbedder) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "indices"), embedder)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func chunksOf(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{Index: i, PageNumber: i + 1, Text: text}
	}
	return out
}

func TestBuildThenLoadSearchesOwnChunks(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	if err := store.Build(ctx, "report_pdf", chunksOf("revenue up", "hiring paused", "weather notes")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := store.Build(ctx, "sports_pdf", chunksOf("football scores")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	idx, err := store.Load(ctx, "report_pdf")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if idx.DocumentID() != "report_pdf" {
		t.Fatalf("unexpected document id %s", idx.DocumentID())
	}
	meta := idx.Meta()
	if meta.DocumentID != "report_pdf" || meta.ChunkCount != 3 || meta.Dimension != len(keywords) || meta.EmbedModel != "keyword-test" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if meta.CreatedAt.IsZero() {
		t.Fatalf("expected creation time in meta")
	}

	query, _ := embedder.EmbedQuery(ctx, "football revenue")
	hits, err := idx.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for _, hit := range hits {
		if strings.Contains(hit.Chunk.Text, "football") {
			t.Fatalf("index leaked chunk from another document: %q", hit.Chunk.Text)
		}
	}
	if hits[0].Chunk.Text != "revenue up" {
		t.Fatalf("expected best hit 'revenue up', got %q", hits[0].Chunk.Text)
	}
	if hits[0].Chunk.PageNumber != 1 {
		t.Fatalf("expected page number to survive persistence, got %d", hits[0].Chunk.PageNumber)
	}
}

func TestSearchRespectsLimitAndOrder(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	if err := store.Build(ctx, "doc", chunksOf("weather", "revenue revenue", "revenue hiring", "football")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	idx, err := store.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	query, _ := embedder.EmbedQuery(ctx, "revenue")
	hits, err := idx.Search(ctx, query, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("hits not sorted by score: %v", hits)
	}
	if hits[0].Chunk.Text != "revenue revenue" {
		t.Fatalf("unexpected top hit %q", hits[0].Chunk.Text)
	}
}

func TestRebuildReplacesPreviousIndex(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	if err := store.Build(ctx, "doc", chunksOf("old revenue text")); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if err := store.Build(ctx, "doc", chunksOf("new hiring text", "new weather text")); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}

	idx, err := store.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	query, _ := embedder.EmbedQuery(ctx, "revenue")
	hits, err := idx.Search(ctx, query, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits after rebuild, got %d", len(hits))
	}
	for _, hit := range hits {
		if strings.HasPrefix(hit.Chunk.Text, "old") {
			t.Fatalf("old chunk still retrievable: %q", hit.Chunk.Text)
		}
	}
}

func TestFailedBuildKeepsPreviousIndex(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	if err := store.Build(ctx, "doc", chunksOf("revenue")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	embedder.err = errors.New("model offline")
	if err := store.Build(ctx, "doc", chunksOf("hiring")); err == nil {
		t.Fatalf("expected embed error")
	}
	if _, err := store.Load(ctx, "doc"); err != nil {
		t.Fatalf("expected previous index to survive, got %v", err)
	}
}

func TestLoadMissingIndexIsNotFound(t *testing.T) {
	store := newTestStore(t, &keywordEmbedder{})

	for _, id := range []string{"unknown", "../escape"} {
		if _, err := store.Load(context.Background(), id); !domain.IsKind(err, domain.ErrNotFound) {
			t.Fatalf("Load(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestBuildRejectsEmptyChunks(t *testing.T) {
	store := newTestStore(t, &keywordEmbedder{})
	if err := store.Build(context.Background(), "doc", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestListIDsSkipsStagingDirectories(t *testing.T) {
	store := newTestStore(t, &keywordEmbedder{})
	ctx := context.Background()

	ids, err := store.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}

	for _, id := range []string{"b_pdf", "a_pdf"} {
		if err := store.Build(ctx, id, chunksOf("revenue")); err != nil {
			t.Fatalf("Build(%s) error = %v", id, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(store.root, ".c_pdf.tmp-123"), 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}

	ids, err = store.ListIDs(ctx)
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "a_pdf" || ids[1] != "b_pdf" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestListIDsMissingRootIsEmpty(t *testing.T) {
	store := &Store{root: filepath.Join(t.TempDir(), "absent")}
	ids, err := store.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty ids, got %v", ids)
	}
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	embedder := &keywordEmbedder{}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	if err := store.Build(ctx, "doc", chunksOf("revenue")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	idx, err := store.Load(ctx, "doc")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1, 2}, 5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
