package fsindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

const (
	indexFile = "index.json"
	metaFile  = "meta.json"
)

// Store keeps one directory per document id under root:
//
//	<root>/<document_id>/index.json  chunks and their normalised vectors
//	<root>/<document_id>/meta.json   embedding metadata
type Store struct {
	root     string
	embedder ports.Embedder
	now      func() time.Time
}

type indexData struct {
	Chunks  []domain.Chunk `json:"chunks"`
	Vectors [][]float32    `json:"vectors"`
}

func New(root string, embedder ports.Embedder) (*Store, error) {
	if root == "" {
		root = "./data/vector_stores"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	return &Store{
		root:     root,
		embedder: embedder,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) dir(documentID string) string {
	return filepath.Join(s.root, documentID)
}

// Build embeds chunks and replaces any existing index for documentID.
// Files are written to a hidden staging directory which is renamed into
// place after the old index has been removed.
func (s *Store) Build(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if err := validateID(documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "build index", errors.New("no chunks to index"))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	for i := range vectors {
		vectors[i] = normalize(vectors[i])
	}

	staging := filepath.Join(s.root, "."+documentID+".tmp-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	meta := domain.IndexMeta{
		DocumentID: documentID,
		EmbedModel: s.embedder.ModelName(),
		Dimension:  len(vectors[0]),
		ChunkCount: len(chunks),
		CreatedAt:  s.now(),
	}
	if err := writeJSON(filepath.Join(staging, indexFile), indexData{Chunks: chunks, Vectors: vectors}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(staging, metaFile), meta); err != nil {
		return err
	}

	target := s.dir(documentID)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context, documentID string) (ports.DocumentIndex, error) {
	// Ids that could never have been built cannot exist on disk.
	if err := validateID(documentID); err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "load index", err)
	}
	dir := s.dir(documentID)

	var meta domain.IndexMeta
	if err := readJSON(filepath.Join(dir, metaFile), &meta); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load index", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("read index meta: %w", err)
	}

	var data indexData
	if err := readJSON(filepath.Join(dir, indexFile), &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "load index", fmt.Errorf("document %s", documentID))
		}
		return nil, fmt.Errorf("read index data: %w", err)
	}
	if len(data.Chunks) != len(data.Vectors) {
		return nil, fmt.Errorf("corrupt index %s: %d chunks, %d vectors", documentID, len(data.Chunks), len(data.Vectors))
	}

	return &Index{
		documentID: documentID,
		meta:       meta,
		chunks:     data.Chunks,
		vectors:    data.Vectors,
	}, nil
}

func (s *Store) ListIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list index root: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Index is an in-memory copy of one persisted document index.
type Index struct {
	documentID string
	meta       domain.IndexMeta
	chunks     []domain.Chunk
	vectors    [][]float32
}

func (i *Index) DocumentID() string { return i.documentID }

func (i *Index) Meta() domain.IndexMeta { return i.meta }

// Search ranks every chunk by cosine similarity to queryVector.
func (i *Index) Search(_ context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if len(i.vectors) == 0 {
		return nil, nil
	}
	if len(queryVector) != i.meta.Dimension {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"search index",
			fmt.Errorf("query dimension %d, index %s dimension %d", len(queryVector), i.documentID, i.meta.Dimension),
		)
	}
	if limit <= 0 || limit > len(i.chunks) {
		limit = len(i.chunks)
	}

	query := normalize(queryVector)
	hits := make([]domain.ScoredChunk, len(i.chunks))
	for idx := range i.chunks {
		hits[idx] = domain.ScoredChunk{Chunk: i.chunks[idx], Score: dot(i.vectors[idx], query)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	return hits[:limit], nil
}

func validateID(documentID string) error {
	if documentID == "" || documentID != domain.DocumentIDFromFilename(documentID) {
		return domain.WrapError(domain.ErrInvalidInput, "validate document id", fmt.Errorf("id %q", documentID))
	}
	return nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Sync()
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
