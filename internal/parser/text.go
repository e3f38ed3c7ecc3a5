package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/alertledger/internal/notice"
)

// TextTokenizer treats blank-line separated paragraphs as nodes. Each raw
// line, line ending included, is one fragment.
type TextTokenizer struct{}

func (t *TextTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	br := bufio.NewReader(r)
	open := false
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if strings.TrimSpace(line) == "" {
				if open {
					emit(notice.Fragment{Final: true})
					open = false
				}
			} else {
				emit(notice.Fragment{Content: line})
				open = true
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
	}
	if open {
		emit(notice.Fragment{Final: true})
	}
	return nil
}
