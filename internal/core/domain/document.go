package domain

import (
	"regexp"
	"time"
)

// Page is the extracted text of a single PDF page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Chunk is a contiguous slice of one page's text.
type Chunk struct {
	Index      int    `json:"index"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// DocumentRecord is catalog metadata about an indexed document.
type DocumentRecord struct {
	ID            string    `json:"id" db:"id"`
	Filename      string    `json:"filename" db:"filename"`
	ContentSHA256 string    `json:"content_sha256" db:"content_sha256"`
	PageCount     int       `json:"page_count" db:"page_count"`
	ChunkCount    int       `json:"chunk_count" db:"chunk_count"`
	EmbedModel    string    `json:"embed_model" db:"embed_model"`
	IndexedAt     time.Time `json:"indexed_at" db:"indexed_at"`
}

// IndexMeta describes a built index without loading its chunks.
type IndexMeta struct {
	DocumentID string    `json:"document_id"`
	EmbedModel string    `json:"embed_model"`
	Dimension  int       `json:"dimension"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordFromIndex is the catalog view of an index when no catalog entry
// exists. Filename, digest and page count are unknown.
func RecordFromIndex(meta IndexMeta) DocumentRecord {
	return DocumentRecord{
		ID:         meta.DocumentID,
		ChunkCount: meta.ChunkCount,
		EmbedModel: meta.EmbedModel,
		IndexedAt:  meta.CreatedAt,
	}
}

// DocumentIndexed is published after a document index has been (re)built.
type DocumentIndexed struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// DocumentIDFromFilename derives the document id used as the index key.
// The mapping is lossy: "a.pdf" and "a!pdf" both become "a_pdf".
func DocumentIDFromFilename(filename string) string {
	return unsafeIDChars.ReplaceAllString(filename, "_")
}
