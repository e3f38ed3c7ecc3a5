package extract

import "github.com/dgallion1/alertledger/internal/notice"

// PairingMode controls how chunks are grouped before rules run.
type PairingMode int

const (
	// Unpaired dispatches every chunk on its own.
	Unpaired PairingMode = iota
	// HeaderValue dispatches each chunk with the chunk before it, so a
	// value is read against its label.
	HeaderValue
)

func (m PairingMode) String() string {
	switch m {
	case Unpaired:
		return "unpaired"
	case HeaderValue:
		return "header_value"
	}
	return "unknown"
}

// Sequencer turns a stream of chunks into pairs for rule dispatch.
type Sequencer struct {
	mode PairingMode
	prev notice.Chunk
}

func NewSequencer(mode PairingMode) *Sequencer {
	return &Sequencer{mode: mode}
}

// Next returns the pair to dispatch for c. Empty chunks return false and
// leave the pairing window where it was.
func (s *Sequencer) Next(c notice.Chunk) (notice.ChunkPair, bool) {
	if c.Empty() {
		return notice.ChunkPair{}, false
	}
	if s.mode == Unpaired {
		return notice.ChunkPair{Current: c}, true
	}
	pair := notice.ChunkPair{Preceding: s.prev, Current: c}
	s.prev = c
	return pair, true
}

// Reset clears the pairing window.
func (s *Sequencer) Reset() {
	s.prev = notice.Chunk{}
}
