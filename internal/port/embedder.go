package port

import "context"

// EmbeddingModel is a loaded dense-embedding model.
type EmbeddingModel interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// Embedder is the process-wide embedding provider shared by ingestion and search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available() bool
	Dimension() int
	ModelName() string
}
