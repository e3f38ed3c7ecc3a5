package extract

import (
	"github.com/dgallion1/alertledger/internal/chunker"
	"github.com/dgallion1/alertledger/internal/notice"
)

// Engine extracts one entry from one document. The tokenizer must call
// Accept in document order from a single goroutine and must never call it
// re-entrantly; the caller then calls Finish once the stream has ended.
// Independent documents need independent engines.
type Engine struct {
	layout Layout
	acc    chunker.Accumulator
	seq    *Sequencer
	rec    PartialRecord
	chunks []notice.Chunk
}

func NewEngine(layout Layout) *Engine {
	return &Engine{
		layout: layout,
		seq:    NewSequencer(layout.Mode),
	}
}

// Layout returns the layout the engine was built with.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Accept consumes one fragment. Rules never abort the stream; a chunk that
// matches nothing is skipped.
func (e *Engine) Accept(f notice.Fragment) {
	chunk, ok := e.acc.Accept(f)
	if !ok {
		return
	}
	pair, ok := e.seq.Next(chunk)
	if !ok {
		return
	}
	e.chunks = append(e.chunks, chunk)
	e.rec = e.layout.Apply(e.rec, pair)
}

// Finish validates the accumulated record. Text of a node that never saw
// its final fragment is discarded.
func (e *Engine) Finish() (notice.Entry, error) {
	e.acc.Reset()
	return Finalize(e.rec)
}

// Chunks returns the non-empty chunks dispatched so far.
func (e *Engine) Chunks() []notice.Chunk {
	out := make([]notice.Chunk, len(e.chunks))
	copy(out, e.chunks)
	return out
}

// Reset prepares the engine for another document.
func (e *Engine) Reset() {
	e.acc.Reset()
	e.seq.Reset()
	e.rec = PartialRecord{}
	e.chunks = nil
}
