package parser

import (
	"bytes"
	"fmt"
	"io"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/alertledger/internal/notice"
)

// PDFTokenizer emits each text row as a node and each shown string within
// the row as a fragment. Strings at distinct horizontal positions are
// separated by a space; the reader reports no glyph widths to do better.
type PDFTokenizer struct{}

func (t *PDFTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return fmt.Errorf("read pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			shown := 0
			var lastX float64
			for _, run := range row.Content {
				if run.S == "" {
					continue
				}
				s := run.S
				if shown > 0 && run.X != lastX {
					s = " " + s
				}
				emit(notice.Fragment{Content: s})
				shown++
				lastX = run.X
			}
			emit(notice.Fragment{Final: true})
		}
	}
	return nil
}
