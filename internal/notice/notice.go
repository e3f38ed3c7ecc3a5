package notice

import "cloud.google.com/go/civil"

// Fragment is one piece of a node's text as delivered by a tokenizer.
type Fragment struct {
	Content string // Raw text, possibly carrying transport artifacts
	Final   bool   // Last fragment of the node
}

// Chunk is the reassembled, normalized text of one markup node.
type Chunk struct {
	Text string
}

// Empty reports whether the chunk carries no text after normalization.
func (c Chunk) Empty() bool {
	return c.Text == ""
}

// ChunkPair is a chunk together with the non-empty chunk that came before it.
type ChunkPair struct {
	Preceding Chunk // Empty for the first chunk of a document
	Current   Chunk
}

// Entry is a validated transaction extracted from one notification.
type Entry struct {
	Amount      int64      `json:"amount"` // Milliunits, debits negative
	Account     string     `json:"account"`
	PostedDate  civil.Date `json:"posted_date"`
	Description string     `json:"description"`
}
