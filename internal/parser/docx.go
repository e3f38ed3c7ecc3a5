package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/alertledger/internal/notice"
)

// DOCXTokenizer emits each body paragraph as a node and each run's text as
// a fragment.
type DOCXTokenizer struct{}

func (t *DOCXTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("parse docx: %w", err)
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			for _, rc := range run.Children {
				if txt, ok := rc.(*docx.Text); ok {
					emit(notice.Fragment{Content: txt.Text})
				}
			}
		}
		emit(notice.Fragment{Final: true})
	}
	return nil
}
