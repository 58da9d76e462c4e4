package port

// Chunker splits extracted text into ordered, non-empty segments.
type Chunker interface {
	Chunk(text string) []string
}
