// Package extract turns PDF files into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrExtractionFailed wraps every per-file extraction failure.
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor returns the plain text of a PDF file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Extractor kinds accepted by New.
const (
	KindNative    = "native"
	KindPDFToText = "pdftotext"
)

// New returns the extractor of the given kind.
func New(kind string) (Extractor, error) {
	switch kind {
	case KindNative, "":
		return NewNativeExtractor(), nil
	case KindPDFToText:
		return NewCommandExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown PDF extractor %q", kind)
	}
}

// joinPages concatenates non-empty page texts, one page per line block.
func joinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
