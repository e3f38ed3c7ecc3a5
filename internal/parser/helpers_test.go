package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/alertledger/internal/chunker"
	"github.com/dgallion1/alertledger/internal/notice"
)

// chunks tokenizes input and returns the non-empty normalized node texts.
func chunks(t *testing.T, tok Tokenizer, input string) []string {
	t.Helper()
	var acc chunker.Accumulator
	var out []string
	err := tok.Tokenize(strings.NewReader(input), func(f notice.Fragment) {
		if c, ok := acc.Accept(f); ok && !c.Empty() {
			out = append(out, c.Text)
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Pending() {
		t.Error("tokenizer left a node without a final fragment")
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
