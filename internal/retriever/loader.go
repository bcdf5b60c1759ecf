package retriever

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/bmedi/chatgse-go/internal/document"
)

// UnsupportedFormatError is returned for document extensions the loader does
// not recognize. It indicates a caller precondition violation and is never
// swallowed.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format: %s", e.Path)
}

// LoadDocument reads a plain-text or PDF document from path. PDF extraction
// concatenates per-page text and keeps the document info fields (title,
// author, ...) as metadata. Every document is tagged with its source path.
func LoadDocument(path string) (document.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return loadText(path)
	case ".pdf":
		return loadPDF(path)
	default:
		return document.Document{}, &UnsupportedFormatError{Path: path}
	}
}

func loadText(path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	return document.Document{
		Content:  string(data),
		Metadata: map[string]string{"source": path},
	}, nil
}

func loadPDF(path string) (document.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return document.Document{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return document.Document{}, fmt.Errorf("extract pdf page %d of %s: %w", i, path, err)
		}
		sb.WriteString(text)
	}

	meta := map[string]string{"source": path}
	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		for _, key := range []string{"Title", "Author", "Subject", "Creator"} {
			if v := info.Key(key); v.Kind() == pdf.String && v.RawString() != "" {
				meta[strings.ToLower(key)] = v.RawString()
			}
		}
	}

	return document.Document{Content: sb.String(), Metadata: meta}, nil
}
