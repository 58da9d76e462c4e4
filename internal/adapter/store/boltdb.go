package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"ekb/internal/domain"
	"ekb/internal/port"
)

var (
	bucketDocuments = []byte("documents")
	bucketSources   = []byte("sources")
	bucketChunks    = []byte("chunks")
	bucketMeta      = []byte("meta")
)

// BoltStore is the embedded Corpus Store. Each document owns a nested bucket
// under "chunks" keyed by big-endian order index, so chunk iteration is
// ordered and a document delete drops all of its chunks in one call.
type BoltStore struct {
	db        *bbolt.DB
	dimension int
}

func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketSources, bucketChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, dimension: dimension}, nil
}

type documentRecord struct {
	ID              uuid.UUID               `json:"id"`
	SourceURI       string                  `json:"source_uri"`
	DocType         string                  `json:"doc_type"`
	ExtractedText   string                  `json:"extracted_text"`
	Metadata        map[string]any          `json:"metadata,omitempty"`
	SpaceID         *uuid.UUID              `json:"space_id,omitempty"`
	UploadedBy      *uuid.UUID              `json:"uploaded_by,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Status          domain.ProcessingStatus `json:"status"`
	LastProcessedAt *time.Time              `json:"last_processed_at,omitempty"`
	ErrorMessage    string                  `json:"error_message,omitempty"`
}

type chunkRecord struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRecord(doc domain.Document) documentRecord {
	return documentRecord(doc)
}

func (r documentRecord) toDomain() domain.Document {
	return domain.Document(r)
}

func orderKey(order int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(order))
	return key
}

func (s *BoltStore) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.StatusPending
	}
	if !doc.Status.Valid() {
		return domain.Document{}, fmt.Errorf("invalid processing status %q", doc.Status)
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status.Terminal() {
		doc.LastProcessedAt = &now
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		sources := tx.Bucket(bucketSources)
		if sources.Get([]byte(doc.SourceURI)) != nil {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSource, doc.SourceURI)
		}
		data, err := json.Marshal(toRecord(doc))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocuments).Put(doc.ID[:], data); err != nil {
			return err
		}
		return sources.Put([]byte(doc.SourceURI), doc.ID[:])
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func (s *BoltStore) CreateChunks(ctx context.Context, docID uuid.UUID, chunks []domain.NewChunk) ([]domain.Chunk, error) {
	for i, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != s.dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, i, len(c.Embedding), s.dimension)
		}
	}

	now := time.Now().UTC()
	created := make([]domain.Chunk, 0, len(chunks))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocuments).Get(docID[:]) == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
		}
		parent := tx.Bucket(bucketChunks)
		if parent.Bucket(docID[:]) != nil {
			return fmt.Errorf("chunks already stored for document %s", docID)
		}
		b, err := parent.CreateBucket(docID[:])
		if err != nil {
			return fmt.Errorf("failed to create chunk bucket: %w", err)
		}

		for i, c := range chunks {
			rec := chunkRecord{
				ID:        uuid.New(),
				Text:      c.Text,
				Embedding: c.Embedding,
				CreatedAt: now,
				UpdatedAt: now,
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(orderKey(i), data); err != nil {
				return err
			}
			created = append(created, rec.toDomain(docID, i))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r chunkRecord) toDomain(docID uuid.UUID, order int) domain.Chunk {
	return domain.Chunk{
		ID:         r.ID,
		DocumentID: docID,
		Text:       r.Text,
		Embedding:  r.Embedding,
		Order:      order,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (s *BoltStore) UpdateStatus(ctx context.Context, docID uuid.UUID, status domain.ProcessingStatus, errMsg string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		rec, err := getDocument(b, docID)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(rec.Status, status); err != nil {
			return err
		}
		now := time.Now().UTC()
		rec.Status = status
		rec.UpdatedAt = now
		rec.ErrorMessage = errMsg
		if status.Terminal() {
			rec.LastProcessedAt = &now
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		doc = rec.toDomain()
		return b.Put(docID[:], data)
	})
	return doc, err
}

func getDocument(b *bbolt.Bucket, id uuid.UUID) (documentRecord, error) {
	var rec documentRecord
	data := b.Get(id[:])
	if data == nil {
		return rec, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return rec, nil
}

func (s *BoltStore) GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		rec, err := getDocument(tx.Bucket(bucketDocuments), id)
		if err != nil {
			return err
		}
		doc = rec.toDomain()
		return nil
	})
	return doc, err
}

// ListDocuments returns every stored document in id order.
func (s *BoltStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var rec documentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode document: %w", err)
			}
			docs = append(docs, rec.toDomain())
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) ListChunks(ctx context.Context, docID uuid.UUID) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocuments).Get(docID[:]) == nil {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
		}
		b := tx.Bucket(bucketChunks).Bucket(docID[:])
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec chunkRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode chunk: %w", err)
			}
			chunks = append(chunks, rec.toDomain(docID, int(binary.BigEndian.Uint32(k))))
			return nil
		})
	})
	return chunks, err
}

func (s *BoltStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		rec, err := getDocument(docs, id)
		if err != nil {
			return err
		}
		chunks := tx.Bucket(bucketChunks)
		if chunks.Bucket(id[:]) != nil {
			if err := chunks.DeleteBucket(id[:]); err != nil {
				return fmt.Errorf("failed to delete chunks: %w", err)
			}
		}
		if err := tx.Bucket(bucketSources).Delete([]byte(rec.SourceURI)); err != nil {
			return err
		}
		return docs.Delete(id[:])
	})
}

// NearestChunks scans every embedded chunk inside a single read transaction
// and ranks by L2 distance. Chunks without an embedding are never candidates.
func (s *BoltStore) NearestChunks(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	var hits []domain.ChunkHit
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		chunks := tx.Bucket(bucketChunks)
		return chunks.ForEach(func(docKey, v []byte) error {
			if v != nil {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			docID, err := uuid.FromBytes(docKey)
			if err != nil {
				return fmt.Errorf("corrupt chunk bucket key: %w", err)
			}
			parent, err := getDocument(docs, docID)
			if err != nil {
				return err
			}
			return chunks.Bucket(docKey).ForEach(func(key, v []byte) error {
				var rec chunkRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return fmt.Errorf("failed to decode chunk: %w", err)
				}
				if rec.Embedding == nil {
					return nil
				}
				hits = append(hits, domain.ChunkHit{
					Chunk:     rec.toDomain(docID, int(binary.BigEndian.Uint32(key))),
					SourceURI: parent.SourceURI,
					Metadata:  parent.Metadata,
					Distance:  L2Distance(query, rec.Embedding),
				})
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return TopK(hits, k), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ port.CorpusStore = (*BoltStore)(nil)
