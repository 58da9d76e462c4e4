package sqlstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"ekb/internal/domain"
)

type documentModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey"`
	SourceURI        string            `gorm:"column:source_uri;not null;uniqueIndex"`
	DocType          string            `gorm:"column:doc_type;not null"`
	ExtractedText    string            `gorm:"column:extracted_text;type:text"`
	Metadata         datatypes.JSONMap `gorm:"column:doc_metadata"`
	SpaceID          *uuid.UUID        `gorm:"column:space_id;type:uuid;index"`
	UploadedByUserID *uuid.UUID        `gorm:"column:uploaded_by_user_id;type:uuid;index"`
	CreatedAt        time.Time         `gorm:"not null"`
	UpdatedAt        time.Time         `gorm:"not null"`
	ProcessingStatus string            `gorm:"column:processing_status;not null;index"`
	LastProcessedAt  *time.Time        `gorm:"column:last_processed_at"`
	ErrorMessage     string            `gorm:"column:error_message;type:text"`
}

func (documentModel) TableName() string { return "ingested_documents" }

// The embedding column is declared as unconstrained "vector"; Postgres
// migration narrows it to vector(dimension). SQLite stores the text form.
type chunkModel struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey"`
	DocumentID uuid.UUID        `gorm:"column:doc_id;type:uuid;not null;uniqueIndex:idx_document_chunks_doc_order,priority:1"`
	Document   *documentModel   `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID"`
	ChunkText  string           `gorm:"column:chunk_text;type:text;not null"`
	ChunkOrder int              `gorm:"column:chunk_order;not null;uniqueIndex:idx_document_chunks_doc_order,priority:2"`
	Embedding  *pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt  time.Time        `gorm:"not null"`
	UpdatedAt  time.Time        `gorm:"not null"`
}

func (chunkModel) TableName() string { return "document_chunks" }

// hitRow is one joined nearest-neighbor row.
type hitRow struct {
	ID          uuid.UUID         `gorm:"column:id"`
	DocumentID  uuid.UUID         `gorm:"column:doc_id"`
	ChunkText   string            `gorm:"column:chunk_text"`
	ChunkOrder  int               `gorm:"column:chunk_order"`
	Embedding   *pgvector.Vector  `gorm:"column:embedding"`
	CreatedAt   time.Time         `gorm:"column:created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at"`
	SourceURI   string            `gorm:"column:source_uri"`
	DocMetadata datatypes.JSONMap `gorm:"column:doc_metadata"`
	Distance    float64           `gorm:"column:distance"`
}

func documentFromDomain(doc domain.Document) documentModel {
	return documentModel{
		ID:               doc.ID,
		SourceURI:        doc.SourceURI,
		DocType:          doc.DocType,
		ExtractedText:    doc.ExtractedText,
		Metadata:         datatypes.JSONMap(doc.Metadata),
		SpaceID:          doc.SpaceID,
		UploadedByUserID: doc.UploadedBy,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		ProcessingStatus: string(doc.Status),
		LastProcessedAt:  doc.LastProcessedAt,
		ErrorMessage:     doc.ErrorMessage,
	}
}

func (m documentModel) toDomain() domain.Document {
	return domain.Document{
		ID:              m.ID,
		SourceURI:       m.SourceURI,
		DocType:         m.DocType,
		ExtractedText:   m.ExtractedText,
		Metadata:        map[string]any(m.Metadata),
		SpaceID:         m.SpaceID,
		UploadedBy:      m.UploadedByUserID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Status:          domain.ProcessingStatus(m.ProcessingStatus),
		LastProcessedAt: m.LastProcessedAt,
		ErrorMessage:    m.ErrorMessage,
	}
}

func toVector(v []float32) *pgvector.Vector {
	if v == nil {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func fromVector(v *pgvector.Vector) []float32 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func (m chunkModel) toDomain() domain.Chunk {
	return domain.Chunk{
		ID:         m.ID,
		DocumentID: m.DocumentID,
		Text:       m.ChunkText,
		Embedding:  fromVector(m.Embedding),
		Order:      m.ChunkOrder,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (r hitRow) toDomain() domain.ChunkHit {
	return domain.ChunkHit{
		Chunk: domain.Chunk{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Text:       r.ChunkText,
			Embedding:  fromVector(r.Embedding),
			Order:      r.ChunkOrder,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		},
		SourceURI: r.SourceURI,
		Metadata:  map[string]any(r.DocMetadata),
		Distance:  r.Distance,
	}
}

// metaModel holds corpus-wide settings that must survive restarts.
type metaModel struct {
	Key   string `gorm:"column:meta_key;primaryKey"`
	Value string `gorm:"column:meta_value;not null"`
}

func (metaModel) TableName() string { return "corpus_meta" }

const metaKeyDimension = "embedding_dimension"
