package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/core/ports"
)

var (
	errQuestionRequired = errors.New("question is required")
	errNoText           = errors.New("document contains no extractable text")
)

type noopCatalog struct{}

func (noopCatalog) Upsert(context.Context, domain.DocumentRecord) error { return nil }

func (noopCatalog) Get(context.Context, string) (*domain.DocumentRecord, error) {
	return nil, domain.ErrNotFound
}

func (noopCatalog) List(context.Context) ([]domain.DocumentRecord, error) {
	return []domain.DocumentRecord{}, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishDocumentIndexed(context.Context, domain.DocumentIndexed) error {
	return nil
}

// IngestDocumentUseCase runs the extract, chunk and index pipeline for one
// document. Catalog and publisher are optional side channels.
type IngestDocumentUseCase struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	indexes   ports.IndexStore
	embedder  ports.Embedder
	catalog   ports.DocumentCatalog
	publisher ports.EventPublisher
	now       func() time.Time
}

func NewIngestDocumentUseCase(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	indexes ports.IndexStore,
	embedder ports.Embedder,
	catalog ports.DocumentCatalog,
	publisher ports.EventPublisher,
) *IngestDocumentUseCase {
	if catalog == nil {
		catalog = noopCatalog{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &IngestDocumentUseCase{
		extractor: extractor,
		chunker:   chunker,
		indexes:   indexes,
		embedder:  embedder,
		catalog:   catalog,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest replaces the index of documentID with one built from pages.
func (uc *IngestDocumentUseCase) Ingest(ctx context.Context, documentID string, pages []domain.Page) error {
	_, err := uc.ingest(ctx, documentID, pages)
	return err
}

func (uc *IngestDocumentUseCase) ingest(ctx context.Context, documentID string, pages []domain.Page) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("document id is required"))
	}

	chunks := uc.chunker.Chunk(pages)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrExtraction, "chunk pages", errNoText)
	}

	if err := uc.indexes.Build(ctx, documentID, chunks); err != nil {
		return 0, fmt.Errorf("build index: %w", err)
	}
	return len(chunks), nil
}

// IngestFile indexes the PDF at path under the id derived from filename and
// returns that id.
func (uc *IngestDocumentUseCase) IngestFile(ctx context.Context, filename, path string) (string, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	documentID := domain.DocumentIDFromFilename(filename)

	digest, err := fileSHA256(path)
	if err != nil {
		return "", err
	}

	texts, err := uc.extractor.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	pages := make([]domain.Page, len(texts))
	for i, text := range texts {
		pages[i] = domain.Page{Number: i + 1, Text: text}
	}

	chunkCount, err := uc.ingest(ctx, documentID, pages)
	if err != nil {
		return "", err
	}

	record := domain.DocumentRecord{
		ID:            documentID,
		Filename:      filename,
		ContentSHA256: digest,
		PageCount:     len(pages),
		ChunkCount:    chunkCount,
		EmbedModel:    uc.embedModel(),
		IndexedAt:     uc.now(),
	}
	uc.recordCatalog(ctx, record)

	event := domain.DocumentIndexed{
		DocumentID: documentID,
		Filename:   filename,
		ChunkCount: chunkCount,
		IndexedAt:  record.IndexedAt,
	}
	if err := uc.publisher.PublishDocumentIndexed(ctx, event); err != nil {
		slog.Warn("document_indexed_publish_failed", "document_id", documentID, "error", err)
	}

	slog.Info("document_ingested",
		"document_id", documentID,
		"filename", filename,
		"pages", len(pages),
		"chunks", chunkCount,
	)
	return documentID, nil
}

func (uc *IngestDocumentUseCase) recordCatalog(ctx context.Context, record domain.DocumentRecord) {
	previous, err := uc.catalog.Get(ctx, record.ID)
	switch {
	case err == nil && previous != nil && previous.Filename != record.Filename:
		slog.Warn("document_id_collision",
			"document_id", record.ID,
			"previous_filename", previous.Filename,
			"filename", record.Filename,
		)
	case err != nil && !domain.IsKind(err, domain.ErrNotFound):
		slog.Warn("document_catalog_lookup_failed", "document_id", record.ID, "error", err)
	}

	if err := uc.catalog.Upsert(ctx, record); err != nil {
		slog.Warn("document_catalog_upsert_failed", "document_id", record.ID, "error", err)
	}
}

func (uc *IngestDocumentUseCase) embedModel() string {
	if uc.embedder == nil {
		return ""
	}
	return uc.embedder.ModelName()
}

func (uc *IngestDocumentUseCase) ListDocuments(ctx context.Context) ([]string, error) {
	ids, err := uc.indexes.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// GetDocument prefers the catalog record and falls back to the metadata the
// index keeps, so lookups work without a catalog.
func (uc *IngestDocumentUseCase) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	record, err := uc.catalog.Get(ctx, id)
	if err == nil {
		return record, nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		return nil, err
	}

	index, loadErr := uc.indexes.Load(ctx, id)
	if loadErr != nil {
		if domain.IsKind(loadErr, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("load index: %w", loadErr)
	}
	fallback := domain.RecordFromIndex(index.Meta())
	return &fallback, nil
}

// DescribeDocuments returns one record per index on disk, in id order.
// Catalog rows win; indexes the catalog does not know are described from
// their own metadata.
func (uc *IngestDocumentUseCase) DescribeDocuments(ctx context.Context) ([]domain.DocumentRecord, error) {
	ids, err := uc.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]domain.DocumentRecord)
	records, err := uc.catalog.List(ctx)
	if err != nil {
		slog.Warn("document_catalog_list_failed", "error", err)
	}
	for _, record := range records {
		known[record.ID] = record
	}

	out := make([]domain.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := known[id]; ok {
			out = append(out, record)
			continue
		}
		index, err := uc.indexes.Load(ctx, id)
		if err != nil {
			slog.Warn("document_index_unreadable", "document_id", id, "error", err)
			continue
		}
		out = append(out, domain.RecordFromIndex(index.Meta()))
	}
	return out, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "open upload", err)
		}
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash upload: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
