package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"script-backend/internal/shared/storage/object"
)

type memOpener map[string][]byte

func (m memOpener) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestExtractMissingFile(t *testing.T) {
	e := NewPDFExtractor(memOpener{})
	_, err := e.Extract(context.Background(), "scripts/missing.pdf")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(err.Error(), "file not found") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestExtractRejectsNonPDFSuffix(t *testing.T) {
	e := NewPDFExtractor(memOpener{"notes.txt": []byte("hello")})
	if _, err := e.Extract(context.Background(), "notes.txt"); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("err = %v", err)
	}
}

func TestExtractRejectsNonPDFContent(t *testing.T) {
	e := NewPDFExtractor(memOpener{"fake.pdf": []byte("just text pretending")})
	if _, err := e.Extract(context.Background(), "fake.pdf"); !errors.Is(err, ErrNotPDF) {
		t.Fatalf("err = %v", err)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	e := NewPDFExtractor(memOpener{"broken.pdf": []byte("%PDF-1.4\nnot really a pdf")})
	if _, err := e.Extract(context.Background(), "broken.pdf"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFileOpener(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rc, err := FileOpener{}.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = rc.Close()
	if _, err := (FileOpener{}).Open(context.Background(), filepath.Join(dir, "b.pdf")); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestClean(t *testing.T) {
	in := "--- PAGE 1 ---\nINT. KITCHEN - DAY\n\n\n\n12\nANNA\r\nHello.\n   3.  \n"
	got := Clean(in)
	want := "--- PAGE 1 ---\nINT. KITCHEN - DAY\n\nANNA\nHello."
	if got != want {
		t.Fatalf("Clean() = %q, want %q", got, want)
	}
}
