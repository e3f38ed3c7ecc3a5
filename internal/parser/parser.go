package parser

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/dgallion1/alertledger/internal/notice"
)

// ErrUnsupportedFormat is returned when no tokenizer handles a document.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Tokenizer streams a document as fragments. Fragments are emitted in
// document order and never re-entrantly; every node ends with exactly one
// fragment marked Final.
type Tokenizer interface {
	Tokenize(r io.Reader, emit func(notice.Fragment)) error
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".eml":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the tokenizer for a filename. tags selects the elements
// that form nodes in markup formats.
func ForFile(filename string, tags []string) (Tokenizer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextTokenizer{}, nil
	case ".md", ".markdown":
		return &MarkdownTokenizer{Tags: tags}, nil
	case ".csv":
		return &CSVTokenizer{}, nil
	case ".html", ".htm", ".eml":
		return &HTMLTokenizer{Tags: tags}, nil
	case ".pdf":
		return &PDFTokenizer{}, nil
	case ".docx":
		return &DOCXTokenizer{}, nil
	default:
		return nil, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
}

// ForContentType returns the tokenizer for a MIME type. Parameters such as
// charset are ignored.
func ForContentType(contentType string, tags []string) (Tokenizer, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, contentType)
	}
	switch mt {
	case "text/html", "application/xhtml+xml", "message/rfc822":
		return &HTMLTokenizer{Tags: tags}, nil
	case "text/markdown", "text/x-markdown":
		return &MarkdownTokenizer{Tags: tags}, nil
	case "text/plain":
		return &TextTokenizer{}, nil
	case "text/csv":
		return &CSVTokenizer{}, nil
	case "application/pdf":
		return &PDFTokenizer{}, nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return &DOCXTokenizer{}, nil
	default:
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, mt)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// tagSet lowercases a tag filter into a lookup set. A nil set means no filter.
func tagSet(tags []string) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = true
	}
	return set
}
