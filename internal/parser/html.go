package parser

import (
	"fmt"
	"io"

	"golang.org/x/net/html"

	"github.com/dgallion1/alertledger/internal/notice"
)

// HTMLTokenizer streams HTML without building a DOM. Text inside an element
// named in Tags forms one node. With no Tags every text token is a node.
type HTMLTokenizer struct {
	Tags []string
}

func (t *HTMLTokenizer) Tokenize(r io.Reader, emit func(notice.Fragment)) error {
	filter := tagSet(t.Tags)
	z := html.NewTokenizer(r)
	open := false
	skip := 0

	closeNode := func() {
		if open {
			emit(notice.Fragment{Final: true})
			open = false
		}
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			closeNode()
			if err := z.Err(); err != io.EOF {
				return fmt.Errorf("tokenize html: %w", err)
			}
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "br":
				if open {
					emit(notice.Fragment{Content: " "})
				}
			case filter[tag]:
				// A nested match closes the outer node.
				closeNode()
				if tt == html.StartTagToken {
					open = true
				} else {
					emit(notice.Fragment{Final: true})
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if skip > 0 {
					skip--
				}
			case filter[tag]:
				closeNode()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			switch {
			case filter == nil:
				emit(notice.Fragment{Content: text, Final: true})
			case open:
				emit(notice.Fragment{Content: text})
			}
		}
	}
}
