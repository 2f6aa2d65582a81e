package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupported is returned for file types no extractor handles.
var ErrUnsupported = errors.New("unsupported file type")

// PDF extracts the plain text layer of a PDF file.
type PDF struct{}

func (PDF) Extract(ctx context.Context, path string) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err = io.Copy(&buf, plain); err != nil {
		return "", err
	}

	return normalize(buf.String()), ctx.Err()
}

// Text reads UTF-8 text files as they are.
type Text struct{}

func (Text) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not valid UTF-8", filepath.Base(path))
	}
	return normalize(string(data)), nil
}

type extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ByExtension picks an extractor from the file extension.
type ByExtension struct {
	extractors map[string]extractor
}

func New() *ByExtension {
	return &ByExtension{
		extractors: map[string]extractor{
			".pdf": PDF{},
			".txt": Text{},
			".md":  Text{},
		},
	}
}

func (b *ByExtension) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := b.extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	return e.Extract(ctx, path)
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
