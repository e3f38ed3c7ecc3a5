package parser

import (
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/alertledger/internal/notice"
)

// MarkdownTokenizer treats paragraphs (p), headings (h1..h6) and table
// cells (td) as nodes, filtered by Tags. With no Tags every such block is a
// node.
type MarkdownTokenizer struct {
	Tags []string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func (t *MarkdownTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}
	filter := tagSet(t.Tags)
	doc := markdown.Parser().Parse(text.NewReader(src))

	return ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		tag := blockTag(n)
		if tag == "" || (filter != nil && !filter[tag]) {
			return ast.WalkContinue, nil
		}
		emitInline(n, src, emit)
		emit(notice.Fragment{Final: true})
		return ast.WalkSkipChildren, nil
	})
}

func blockTag(n ast.Node) string {
	switch v := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return "p"
	case *ast.Heading:
		return fmt.Sprintf("h%d", v.Level)
	case *extast.TableCell:
		return "td"
	}
	return ""
}

func emitInline(n ast.Node, src []byte, emit func(notice.Fragment)) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			s := string(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				s += " "
			}
			emit(notice.Fragment{Content: s})
		case *ast.String:
			emit(notice.Fragment{Content: string(v.Value)})
		case *ast.AutoLink:
			emit(notice.Fragment{Content: string(v.Label(src))})
		default:
			emitInline(c, src, emit)
		}
	}
}
