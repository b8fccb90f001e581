package ports

import (
	"context"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for building document indices.
type DocumentIngestor interface {
	Ingest(ctx context.Context, documentID string, pages []domain.Page) error
	IngestFile(ctx context.Context, filename, path string) (string, error)
}

// QuestionAnswerer is the inbound contract for retrieval-augmented answers.
type QuestionAnswerer interface {
	Ask(ctx context.Context, question string, documentIDs []string) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for known documents.
type DocumentReader interface {
	ListDocuments(ctx context.Context) ([]string, error)
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)
	DescribeDocuments(ctx context.Context) ([]domain.DocumentRecord, error)
}
