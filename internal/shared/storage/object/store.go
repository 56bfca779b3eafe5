package object

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/h2non/filetype"

	"script-backend/internal/shared/util"
)

// ErrNotFound is returned when a storage key has no object.
var ErrNotFound = errors.New("file not found")

// Object describes a stored upload.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// ObjectStore holds uploaded scripts. Keys are slash separated and relative
// to the store root.
type ObjectStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// SniffLen is how many leading bytes DetectMime needs.
const SniffLen = 262

// DetectMime classifies content from its leading bytes.
func DetectMime(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

// NewKey builds scripts/<yyyy-mm-dd>/<random>_<name> for an upload.
func NewKey(now time.Time, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return path.Join("scripts", now.UTC().Format("2006-01-02"), randomID()+"_"+name), nil
}

// Sniff reads the leading bytes of r for type detection and returns a reader
// that replays them ahead of the rest of the stream.
func Sniff(r io.Reader) (mimeType string, body io.Reader, err error) {
	head := make([]byte, SniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	return DetectMime(head), io.MultiReader(bytes.NewReader(head), r), nil
}

// CountingReader tallies the bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
