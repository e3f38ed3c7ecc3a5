package pipeline

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/alertledger/internal/extract"
	"github.com/dgallion1/alertledger/internal/notice"
	"github.com/dgallion1/alertledger/internal/parser"
)

// Extraction is the outcome of running one document through a layout.
type Extraction struct {
	Layout extract.Layout
	Entry  notice.Entry
	Chunks []notice.Chunk
}

// TokenizerFor prefers the declared content type and falls back to the
// file extension when the type is missing or generic.
func TokenizerFor(filename, contentType string, tags []string) (parser.Tokenizer, error) {
	if contentType != "" {
		if tok, err := parser.ForContentType(contentType, tags); err == nil {
			return tok, nil
		}
	}
	return parser.ForFile(filename, tags)
}

// ExtractDocument selects the layout for sender and extracts one entry.
func ExtractDocument(sender, filename, contentType string, data []byte) (Extraction, error) {
	layout, err := extract.ForSender(sender)
	if err != nil {
		return Extraction{}, err
	}
	return ExtractWithLayout(layout, filename, contentType, data)
}

// ExtractWithLayout tokenizes data and feeds it through a fresh engine.
// When the document is incomplete the returned error wraps
// extract.ErrIncomplete and the chunks seen are still reported.
func ExtractWithLayout(layout extract.Layout, filename, contentType string, data []byte) (Extraction, error) {
	out := Extraction{Layout: layout}
	tok, err := TokenizerFor(filename, contentType, layout.Tags)
	if err != nil {
		return out, err
	}

	eng := extract.NewEngine(layout)
	if err := tok.Tokenize(bytes.NewReader(data), eng.Accept); err != nil {
		out.Chunks = eng.Chunks()
		return out, fmt.Errorf("tokenize %s: %w", filename, err)
	}
	entry, err := eng.Finish()
	out.Chunks = eng.Chunks()
	if err != nil {
		return out, err
	}
	out.Entry = entry
	return out, nil
}
