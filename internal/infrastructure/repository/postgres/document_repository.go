package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/kirillkom/docqa/internal/core/domain"
)

// DocumentRepository is the Postgres-backed document catalog.
type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content_sha256 TEXT NOT NULL,
	page_count INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	embed_model TEXT NOT NULL DEFAULT '',
	indexed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_indexed_at ON documents(indexed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Upsert stores the latest indexing run for a document id. Re-ingestion
// under the same id overwrites the previous row.
func (r *DocumentRepository) Upsert(ctx context.Context, record domain.DocumentRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
INSERT INTO documents (id, filename, content_sha256, page_count, chunk_count, embed_model, indexed_at)
VALUES (:id, :filename, :content_sha256, :page_count, :chunk_count, :embed_model, :indexed_at)
ON CONFLICT (id) DO UPDATE SET
	filename = EXCLUDED.filename,
	content_sha256 = EXCLUDED.content_sha256,
	page_count = EXCLUDED.page_count,
	chunk_count = EXCLUDED.chunk_count,
	embed_model = EXCLUDED.embed_model,
	indexed_at = EXCLUDED.indexed_at
`, record)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	var record domain.DocumentRecord
	err := r.db.GetContext(ctx, &record, `
SELECT id, filename, content_sha256, page_count, chunk_count, embed_model, indexed_at
FROM documents
WHERE id = $1
`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	return &record, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	records := []domain.DocumentRecord{}
	err := r.db.SelectContext(ctx, &records, `
SELECT id, filename, content_sha256, page_count, chunk_count, embed_model, indexed_at
FROM documents
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	return records, nil
}
