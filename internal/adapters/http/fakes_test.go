package httpadapter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/docqa/internal/config"
	"github.com/kirillkom/docqa/internal/core/domain"
)

type ingestorFake struct {
	mu        sync.Mutex
	failOn    string
	err       error
	filenames []string
	contents  []string
	paths     []string
}

func (f *ingestorFake) Ingest(context.Context, string, []domain.Page) error { return nil }

func (f *ingestorFake) IngestFile(_ context.Context, filename, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.filenames = append(f.filenames, filename)
	f.contents = append(f.contents, string(raw))
	f.paths = append(f.paths, path)
	if filename == f.failOn {
		return "", f.err
	}
	return domain.DocumentIDFromFilename(filename), nil
}

type answererFake struct {
	answer   *domain.Answer
	err      error
	question string
	ids      []string
}

func (f *answererFake) Ask(_ context.Context, question string, ids []string) (*domain.Answer, error) {
	f.question = question
	f.ids = ids
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", Sources: []domain.RetrievedChunk{}, FollowUpQuestions: []string{}}, nil
}

type readerFake struct {
	ids    []string
	record *domain.DocumentRecord
	err    error
}

func (f *readerFake) ListDocuments(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.ids == nil {
		return []string{}, nil
	}
	return f.ids, nil
}

func (f *readerFake) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.record == nil || f.record.ID != id {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", errors.New(id))
	}
	return f.record, nil
}

func (f *readerFake) DescribeDocuments(context.Context) ([]domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.DocumentRecord{}
	for _, id := range f.ids {
		out = append(out, domain.DocumentRecord{ID: id})
	}
	return out, nil
}

// storageFake stages uploads in a temp dir, like localfs.
type storageFake struct {
	dir     string
	removed []string
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	out, err := os.Create(f.Path(key))
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, data)
	return err
}

func (f *storageFake) Path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key))
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	f.removed = append(f.removed, key)
	return os.Remove(f.Path(key))
}

func testConfig() config.Config {
	return config.Config{MaxUploadMB: 1}
}
