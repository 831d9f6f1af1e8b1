package extract

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// NativeExtractor reads the text layer with a pure-Go PDF parser.
type NativeExtractor struct{}

// NewNativeExtractor creates a native extractor.
func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

// Extract implements Extractor. Pages whose text cannot be read are skipped;
// a file that cannot be opened fails.
func (e *NativeExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %s: malformed PDF: %v", ErrExtractionFailed, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, pageText)
	}
	return joinPages(pages), nil
}
