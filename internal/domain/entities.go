package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the fixed vector size produced by the default embedding
// model (all-MiniLM-L6-v2 compatible). Stored vector columns are sized from it
// unless the deployment configures a different model dimension.
const EmbeddingDimension = 384

// DefaultChunkSize is the target chunk length in characters.
const DefaultChunkSize = 1000

// Document types assigned by text extraction.
const (
	DocTypeMarkdown = "markdown"
	DocTypeText     = "text"
	DocTypeUnknown  = "unknown"
)

// Document is one ingested source artifact.
type Document struct {
	ID              uuid.UUID        `json:"doc_id"`
	SourceURI       string           `json:"source_uri"`
	DocType         string           `json:"doc_type"`
	ExtractedText   string           `json:"extracted_text,omitempty"`
	Metadata        map[string]any   `json:"doc_metadata,omitempty"`
	SpaceID         *uuid.UUID       `json:"space_id,omitempty"`
	UploadedBy      *uuid.UUID       `json:"uploaded_by_user_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Status          ProcessingStatus `json:"processing_status"`
	LastProcessedAt *time.Time       `json:"last_processed_at,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// Chunk is one ordered, retrievable segment of a Document's text.
// Embedding is nil when embedding was skipped or failed.
type Chunk struct {
	ID         uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"doc_id"`
	Text       string    `json:"chunk_text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Order      int       `json:"chunk_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewChunk is a chunk waiting to be persisted; the store assigns ids and timestamps.
type NewChunk struct {
	Text      string
	Embedding []float32
}

// InputRef points at the raw input handed over by the upload collaborator.
type InputRef struct {
	Locator      string `json:"file_path"`
	OriginalName string `json:"original_filename"`
	SizeBytes    int64  `json:"size_bytes"`
	ContentType  string `json:"content_type"`
}

// Identity is the opaque caller context attached to created documents.
type Identity struct {
	UserID  *uuid.UUID
	SpaceID *uuid.UUID
}

// ChunkHit is one row of a nearest-neighbor query: the chunk joined with its
// parent document's locator and metadata.
type ChunkHit struct {
	Chunk     Chunk
	SourceURI string
	Metadata  map[string]any
	Distance  float64
}

// SearchResult is a ranked semantic search hit. Score is the raw L2 distance:
// smaller is more similar.
type SearchResult struct {
	DocumentID uuid.UUID      `json:"doc_id"`
	ChunkID    uuid.UUID      `json:"chunk_id"`
	ChunkText  string         `json:"chunk_text"`
	SourceURI  string         `json:"source_uri"`
	Metadata   map[string]any `json:"doc_metadata,omitempty"`
	Score      float64        `json:"score"`
}

// SearchResponse is the search API payload.
type SearchResponse struct {
	QueryText string         `json:"query_text"`
	Results   []SearchResult `json:"results"`
}
