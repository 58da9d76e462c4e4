package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ekb/internal/adapter/store"
	"ekb/internal/domain"
	"ekb/internal/port"
)

// MemoryStore is a process-local Corpus Store for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[uuid.UUID]domain.Document
	sources   map[string]uuid.UUID
	chunks    map[uuid.UUID][]domain.Chunk

	// FailCreateChunks makes the next CreateChunks calls fail with this error.
	FailCreateChunks error
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		docs:      make(map[uuid.UUID]domain.Document),
		sources:   make(map[string]uuid.UUID),
		chunks:    make(map[uuid.UUID][]domain.Chunk),
	}
}

func (s *MemoryStore) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[doc.SourceURI]; ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDuplicateSource, doc.SourceURI)
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status.Terminal() {
		doc.LastProcessedAt = &now
	}

	s.docs[doc.ID] = doc
	s.sources[doc.SourceURI] = doc.ID
	return doc, nil
}

func (s *MemoryStore) CreateChunks(ctx context.Context, docID uuid.UUID, batch []domain.NewChunk) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreateChunks != nil {
		return nil, s.FailCreateChunks
	}
	if _, ok := s.docs[docID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
	}
	if _, ok := s.chunks[docID]; ok {
		return nil, fmt.Errorf("chunks already stored for document %s", docID)
	}
	for i, c := range batch {
		if c.Embedding != nil && len(c.Embedding) != s.dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, i, len(c.Embedding), s.dimension)
		}
	}

	now := time.Now().UTC()
	created := make([]domain.Chunk, len(batch))
	for i, c := range batch {
		created[i] = domain.Chunk{
			ID:         uuid.New(),
			DocumentID: docID,
			Text:       c.Text,
			Embedding:  c.Embedding,
			Order:      i,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	s.chunks[docID] = created
	return append([]domain.Chunk(nil), created...), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, docID uuid.UUID, status domain.ProcessingStatus, errMsg string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[docID]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
	}
	if err := domain.CheckTransition(doc.Status, status); err != nil {
		return domain.Document{}, err
	}
	now := time.Now().UTC()
	doc.Status = status
	doc.UpdatedAt = now
	doc.ErrorMessage = errMsg
	if status.Terminal() {
		doc.LastProcessedAt = &now
	}
	s.docs[docID] = doc
	return doc, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *MemoryStore) ListChunks(ctx context.Context, docID uuid.UUID) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.docs[docID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
	}
	return append([]domain.Chunk(nil), s.chunks[docID]...), nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	delete(s.chunks, id)
	delete(s.sources, doc.SourceURI)
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) NearestChunks(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.ChunkHit
	for docID, chunks := range s.chunks {
		doc := s.docs[docID]
		for _, c := range chunks {
			if c.Embedding == nil {
				continue
			}
			hits = append(hits, domain.ChunkHit{
				Chunk:     c,
				SourceURI: doc.SourceURI,
				Metadata:  doc.Metadata,
				Distance:  store.L2Distance(query, c.Embedding),
			})
		}
	}
	return store.TopK(hits, k), nil
}

// ChunkCount returns the total number of stored chunks.
func (s *MemoryStore) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, chunks := range s.chunks {
		n += len(chunks)
	}
	return n
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ port.CorpusStore = (*MemoryStore)(nil)
