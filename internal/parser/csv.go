package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/alertledger/internal/notice"
)

// CSVTokenizer emits every cell as its own node, row by row.
type CSVTokenizer struct{}

func (t *CSVTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse csv: %w", err)
		}
		for _, cell := range row {
			emit(notice.Fragment{Content: cell, Final: true})
		}
	}
}
