package models

// Document is one source file loaded from the corpus directory.
type Document struct {
	ID       string
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Node is a contiguous chunk of a Document's content. Position is the
// zero-based order of the chunk within its document.
type Node struct {
	ID         string
	DocumentID string
	Source     string
	Position   int
	Text       string
}

// ScoredNode is a Node returned by a similarity search.
type ScoredNode struct {
	Node
	Score float32
}

// Response is the outcome of answering one question. Found is false when no
// node passed the similarity cutoff, in which case Answer holds the canned
// no-answer message and Sources is empty.
type Response struct {
	Question string
	Answer   string
	Sources  []ScoredNode
	Found    bool
}
