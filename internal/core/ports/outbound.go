package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// ObjectStorage stages uploaded files until they are processed.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Path(key string) string
	Remove(ctx context.Context, key string) error
}

// TextExtractor returns the text of every page of a PDF file, in order.
type TextExtractor interface {
	Extract(ctx context.Context, path string) ([]string, error)
}

// Chunker splits pages into overlapping chunks that keep their page number.
type Chunker interface {
	Chunk(pages []domain.Page) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// IndexStore persists one vector index per document id.
type IndexStore interface {
	Build(ctx context.Context, documentID string, chunks []domain.Chunk) error
	Load(ctx context.Context, documentID string) (DocumentIndex, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// DocumentIndex is a loaded, read-only index of a single document.
type DocumentIndex interface {
	DocumentID() string
	Meta() domain.IndexMeta
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error)
}

// Reranker scores (query, text) pairs with a cross-encoder. The returned
// slice is aligned with texts.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator runs a prompt through the language model.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentCatalog keeps metadata about indexed documents.
type DocumentCatalog interface {
	Upsert(ctx context.Context, record domain.DocumentRecord) error
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}

// EventPublisher announces finished indexing runs.
type EventPublisher interface {
	PublishDocumentIndexed(ctx context.Context, event domain.DocumentIndexed) error
}
