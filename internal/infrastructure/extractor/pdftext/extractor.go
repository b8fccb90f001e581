package pdftext

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docqa/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text of every page in page order. Pages without a
// content stream yield an empty string so page numbers stay aligned.
func (e *Extractor) Extract(ctx context.Context, path string) (pages []string, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "extract pdf", fmt.Errorf("file %s", path))
		}
		return nil, fmt.Errorf("stat pdf: %w", statErr)
	}

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = domain.WrapError(domain.ErrExtraction, "extract pdf", fmt.Errorf("parser panic: %v", r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, fmt.Sprintf("read page %d", i), err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
