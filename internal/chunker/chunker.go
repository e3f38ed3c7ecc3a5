package chunker

import (
	"regexp"
	"strings"

	"github.com/dgallion1/alertledger/internal/notice"
)

var (
	// softBreak is a quoted-printable soft line break left behind when a
	// body is re-encoded in transit. HTML tokenizers fold CRLF to LF, so
	// every line ending form is accepted.
	softBreak   = regexp.MustCompile(`=(?:\r\n|\n|\r)`)
	tagRemnant  = regexp.MustCompile(`<[^<>]*>`)
	strayAngles = strings.NewReplacer("<", "", ">", "")
)

// Accumulator reassembles the fragments of one node into a chunk.
// The zero value is ready to use. It is not safe for concurrent use.
type Accumulator struct {
	buf strings.Builder
}

// Accept appends a fragment. When the fragment is the last one of its node,
// the buffered text is normalized, the buffer cleared, and the chunk returned
// with ok=true. The chunk may be empty for whitespace-only nodes.
func (a *Accumulator) Accept(f notice.Fragment) (chunk notice.Chunk, ok bool) {
	a.buf.WriteString(f.Content)
	if !f.Final {
		return notice.Chunk{}, false
	}
	text := Normalize(a.buf.String())
	a.buf.Reset()
	return notice.Chunk{Text: text}, true
}

// Pending reports whether fragments are buffered for an unfinished node.
func (a *Accumulator) Pending() bool {
	return a.buf.Len() > 0
}

// Reset drops any buffered text.
func (a *Accumulator) Reset() {
	a.buf.Reset()
}

// Normalize strips transport artifacts from node text. Steps repeat until
// nothing changes, so Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = tagRemnant.ReplaceAllString(s, "")
	s = strayAngles.Replace(s)
	s = softBreak.ReplaceAllString(s, "")
	// Fields splits on unicode spaces, NBSP included.
	return strings.Join(strings.Fields(s), " ")
}
