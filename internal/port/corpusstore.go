package port

import (
	"context"

	"github.com/google/uuid"

	"ekb/internal/domain"
)

// CorpusStore persists documents and their ordered chunks. It is the only
// component that mutates either entity.
type CorpusStore interface {
	// CreateDocument inserts a document and returns it with id and timestamps set.
	CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error)

	// CreateChunks stores the whole ordered batch for one document in a single
	// transaction; order indices are assigned from slice position.
	CreateChunks(ctx context.Context, docID uuid.UUID, chunks []domain.NewChunk) ([]domain.Chunk, error)

	// UpdateStatus advances a document's processing status.
	UpdateStatus(ctx context.Context, docID uuid.UUID, status domain.ProcessingStatus, errMsg string) (domain.Document, error)

	GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error)

	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// ListChunks returns a document's chunks ordered by order index.
	ListChunks(ctx context.Context, docID uuid.UUID) ([]domain.Chunk, error)

	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// NearestChunks ranks chunks with a non-null embedding by ascending L2
	// distance to query, joined with the parent document, limited to k.
	NearestChunks(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error)

	Close() error
}
