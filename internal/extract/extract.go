// Package extract turns stored script PDFs into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/h2non/filetype"
	"github.com/ledongthuc/pdf"

	"script-backend/internal/shared/storage/object"
	"script-backend/internal/shared/telemetry"
	"script-backend/internal/shared/util"
	"script-backend/internal/workflow"
)

var (
	// ErrNotPDF is returned for content that is not a PDF.
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrNoText is returned when a PDF yields no text.
	ErrNoText = errors.New("no text could be extracted")

	pageNumberLine = regexp.MustCompile(`(?m)^[ \t]*\d+\.?[ \t]*$`)
	blankRun       = regexp.MustCompile(`\n\s*\n\s*\n`)
)

// Opener reads a document by key.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileOpener opens keys as local file paths.
type FileOpener struct{}

// Open opens path on the local filesystem.
func (FileOpener) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, object.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// PDFExtractor implements workflow.Extractor for PDF scripts.
// Libraries used: github.com/h2non/filetype (magic check) and
// github.com/ledongthuc/pdf (text).
type PDFExtractor struct {
	opener Opener
}

// NewPDFExtractor reads documents through opener.
func NewPDFExtractor(opener Opener) *PDFExtractor {
	return &PDFExtractor{opener: opener}
}

// Extract reads the document at key and returns its text with counts.
func (e *PDFExtractor) Extract(ctx context.Context, key string) (workflow.Document, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Document{}, err
	}
	if !util.HasExt(key, ".pdf") {
		return workflow.Document{}, fmt.Errorf("%w: %s", ErrNotPDF, key)
	}

	body, err := e.opener.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return workflow.Document{}, fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return workflow.Document{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return workflow.Document{}, fmt.Errorf("read %s: %w", key, err)
	}
	doc, err := FromBytes(ctx, data)
	if err != nil {
		return workflow.Document{}, fmt.Errorf("extract %s: %w", key, err)
	}
	return doc, nil
}

// FromBytes extracts text from an in-memory PDF.
func FromBytes(ctx context.Context, data []byte) (workflow.Document, error) {
	if err := ctx.Err(); err != nil {
		return workflow.Document{}, err
	}
	if !filetype.Is(data, "pdf") {
		return workflow.Document{}, ErrNotPDF
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return workflow.Document{}, fmt.Errorf("parse pdf: %w", err)
	}

	pages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return workflow.Document{}, err
		}
		text, err := pageText(reader, i)
		if err != nil {
			telemetry.Warn("extract.page_failed", map[string]any{"page": i, "error": err.Error()})
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- PAGE %d ---\n%s\n", i, text)
	}

	text := Clean(b.String())
	if text == "" {
		return workflow.Document{}, ErrNoText
	}
	return workflow.Document{
		Text:      text,
		WordCount: len(strings.Fields(text)),
		PageCount: pages,
	}, nil
}

// pageText extracts one page, converting parser panics on malformed
// content streams into errors.
func pageText(reader *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", i, r)
		}
	}()
	page := reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// Clean drops bare page-number lines and collapses runs of blank lines.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = pageNumberLine.ReplaceAllString(text, "")
	for blankRun.MatchString(text) {
		text = blankRun.ReplaceAllString(text, "\n\n")
	}
	return strings.TrimSpace(text)
}

var _ workflow.Extractor = (*PDFExtractor)(nil)
