package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ekb/config"
	"ekb/internal/adapter/store"
	"ekb/internal/domain"
	"ekb/internal/logger"
	"ekb/internal/port"
)

const chunkInsertBatch = 100

// Store is the gorm-backed Corpus Store. On Postgres nearest-neighbor ranking
// runs in SQL with pgvector; on SQLite candidates are ranked in process.
type Store struct {
	db        *gorm.DB
	driver    string
	dimension int
	log       *logger.Logger
}

// DB exposes the underlying handle for tests and maintenance commands.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document) (domain.Document, error) {
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

	m := documentFromDomain(doc)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDuplicateSource, doc.SourceURI)
		}
		return domain.Document{}, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

func (s *Store) CreateChunks(ctx context.Context, docID uuid.UUID, chunks []domain.NewChunk) ([]domain.Chunk, error) {
	for i, c := range chunks {
		if c.Embedding != nil && len(c.Embedding) != s.dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, store expects %d",
				domain.ErrDimensionMismatch, i, len(c.Embedding), s.dimension)
		}
	}

	now := time.Now().UTC()
	models := make([]chunkModel, len(chunks))
	for i, c := range chunks {
		models[i] = chunkModel{
			ID:         uuid.New(),
			DocumentID: docID,
			ChunkText:  c.Text,
			ChunkOrder: i,
			Embedding:  toVector(c.Embedding),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&documentModel{}).Where("id = ?", docID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
		}
		if len(models) == 0 {
			return nil
		}
		return tx.CreateInBatches(&models, chunkInsertBatch).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create chunks: %w", err)
	}

	created := make([]domain.Chunk, len(models))
	for i, m := range models {
		created[i] = m.toDomain()
	}
	return created, nil
}

func (s *Store) UpdateStatus(ctx context.Context, docID uuid.UUID, status domain.ProcessingStatus, errMsg string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if s.driver == config.DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var m documentModel
		if err := q.First(&m, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, docID)
			}
			return err
		}
		if err := domain.CheckTransition(domain.ProcessingStatus(m.ProcessingStatus), status); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"processing_status": string(status),
			"error_message":     errMsg,
			"updated_at":        now,
		}
		if status.Terminal() {
			updates["last_processed_at"] = now
		}
		if err := tx.Model(&documentModel{}).Where("id = ?", docID).Updates(updates).Error; err != nil {
			return err
		}

		m.ProcessingStatus = string(status)
		m.ErrorMessage = errMsg
		m.UpdatedAt = now
		if status.Terminal() {
			m.LastProcessedAt = &now
		}
		doc = m.toDomain()
		return nil
	})
	return doc, err
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	var m documentModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return domain.Document{}, fmt.Errorf("failed to load document: %w", err)
	}
	return m.toDomain(), nil
}

// ListDocuments returns every stored document, oldest first.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var models []documentModel
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs := make([]domain.Document, len(models))
	for i, m := range models {
		docs[i] = m.toDomain()
	}
	return docs, nil
}

func (s *Store) ListChunks(ctx context.Context, docID uuid.UUID) ([]domain.Chunk, error) {
	if _, err := s.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	var models []chunkModel
	if err := s.db.WithContext(ctx).Where("doc_id = ?", docID).Order("chunk_order").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	chunks := make([]domain.Chunk, len(models))
	for i, m := range models {
		chunks[i] = m.toDomain()
	}
	return chunks, nil
}

// DeleteDocument removes the document and its chunks in one transaction. The
// foreign key also cascades; the explicit chunk delete covers SQLite files
// opened without foreign key enforcement.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doc_id = ?", id).Delete(&chunkModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&documentModel{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
		}
		return nil
	})
}

func (s *Store) NearestChunks(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	if s.driver == config.DriverPostgres {
		return s.nearestPostgres(ctx, query, k)
	}
	return s.nearestScan(ctx, query, k)
}

const hitColumns = "c.id, c.doc_id, c.chunk_text, c.chunk_order, c.embedding, c.created_at, c.updated_at, d.source_uri, d.doc_metadata"

func (s *Store) joinedChunks(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("document_chunks AS c").
		Joins("JOIN ingested_documents AS d ON d.id = c.doc_id").
		Where("c.embedding IS NOT NULL")
}

func (s *Store) nearestPostgres(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error) {
	var rows []hitRow
	err := s.joinedChunks(ctx).
		Select(hitColumns+", c.embedding <-> ? AS distance", pgvector.NewVector(query)).
		Order("distance, c.doc_id, c.chunk_order").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nearest neighbor query failed: %w", err)
	}

	hits := make([]domain.ChunkHit, len(rows))
	for i, r := range rows {
		hits[i] = r.toDomain()
	}
	return hits, nil
}

func (s *Store) nearestScan(ctx context.Context, query []float32, k int) ([]domain.ChunkHit, error) {
	var rows []hitRow
	if err := s.joinedChunks(ctx).Select(hitColumns).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("nearest neighbor scan failed: %w", err)
	}

	hits := make([]domain.ChunkHit, 0, len(rows))
	for _, r := range rows {
		hit := r.toDomain()
		if len(hit.Chunk.Embedding) != s.dimension {
			s.log.Warn("skipping chunk with foreign embedding dimension",
				"chunk_id", hit.Chunk.ID, "dimension", len(hit.Chunk.Embedding))
			continue
		}
		hit.Distance = store.L2Distance(query, hit.Chunk.Embedding)
		hits = append(hits, hit)
	}
	return store.TopK(hits, k), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ port.CorpusStore = (*Store)(nil)

// Clear deletes every chunk and document and re-records the store's
// embedding dimension. On Postgres the vector column is resized to match.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&chunkModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&documentModel{}).Error; err != nil {
			return err
		}
		if s.driver == config.DriverPostgres {
			if err := s.retypeVectorColumn(tx); err != nil {
				return err
			}
		}
		return s.recordDimension(tx)
	})
}
