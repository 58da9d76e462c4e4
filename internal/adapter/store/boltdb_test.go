package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekb/config"
	"ekb/internal/domain"
)

const testDim = 4

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "corpus.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *BoltStore, source string, embeddings ...[]float32) domain.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, domain.Document{
		SourceURI: source,
		DocType:   domain.DocTypeMarkdown,
		Metadata:  map[string]any{"original_filename": filepath.Base(source)},
		Status:    domain.StatusProcessing,
	})
	require.NoError(t, err)

	batch := make([]domain.NewChunk, len(embeddings))
	for i, e := range embeddings {
		batch[i] = domain.NewChunk{Text: source + " chunk", Embedding: e}
	}
	_, err = s.CreateChunks(ctx, doc.ID, batch)
	require.NoError(t, err)
	return doc
}

func TestBoltStoreCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := uuid.New()

	created, err := s.CreateDocument(ctx, domain.Document{
		SourceURI:     "/data/notes.md",
		DocType:       domain.DocTypeMarkdown,
		ExtractedText: "hello",
		Metadata:      map[string]any{"size_bytes": 5},
		UploadedBy:    &user,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Nil(t, created.LastProcessedAt)

	got, err := s.GetDocument(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/notes.md", got.SourceURI)
	assert.Equal(t, "hello", got.ExtractedText)
	assert.Equal(t, user, *got.UploadedBy)
	assert.EqualValues(t, 5, got.Metadata["size_bytes"])
}

func TestBoltStoreGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDocument(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestBoltStoreDuplicateSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateDocument(ctx, domain.Document{SourceURI: "/a.md"})
	require.NoError(t, err)

	_, err = s.CreateDocument(ctx, domain.Document{SourceURI: "/a.md"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSource)
}

func TestBoltStoreChunkOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, domain.Document{SourceURI: "/ordered.md"})
	require.NoError(t, err)

	batch := make([]domain.NewChunk, 300)
	for i := range batch {
		batch[i] = domain.NewChunk{Text: "chunk"}
	}
	created, err := s.CreateChunks(ctx, doc.ID, batch)
	require.NoError(t, err)
	require.Len(t, created, 300)

	listed, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, listed, 300)
	for i, c := range listed {
		assert.Equal(t, i, c.Order)
		assert.Equal(t, doc.ID, c.DocumentID)
		assert.Equal(t, created[i].ID, c.ID)
	}
}

func TestBoltStoreCreateChunksRejectsWrongDimension(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, domain.Document{SourceURI: "/dim.md"})
	require.NoError(t, err)

	_, err = s.CreateChunks(ctx, doc.ID, []domain.NewChunk{
		{Text: "ok", Embedding: []float32{1, 0, 0, 0}},
		{Text: "bad", Embedding: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// All or nothing.
	chunks, err := s.ListChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestBoltStoreCreateChunksUnknownDocument(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateChunks(context.Background(), uuid.New(), []domain.NewChunk{{Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestBoltStoreUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, domain.Document{SourceURI: "/s.md", Status: domain.StatusProcessing})
	require.NoError(t, err)

	updated, err := s.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	require.NotNil(t, updated.LastProcessedAt)

	_, err = s.UpdateStatus(ctx, doc.ID, domain.StatusFailed, "late failure")
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestBoltStoreDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := seedDocument(t, s, "/gone.md", []float32{1, 0, 0, 0}, []float32{0, 1, 0, 0})
	keep := seedDocument(t, s, "/kept.md", []float32{0, 0, 1, 0})

	require.NoError(t, s.DeleteDocument(ctx, doc.ID))

	_, err := s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	_, err = s.ListChunks(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	hits, err := s.NearestChunks(ctx, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, keep.ID, hits[0].Chunk.DocumentID)

	// The source may be ingested again after deletion.
	_, err = s.CreateDocument(ctx, domain.Document{SourceURI: "/gone.md"})
	assert.NoError(t, err)

	assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), domain.ErrDocumentNotFound)
}

func TestBoltStoreNearestChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	near := seedDocument(t, s, "/near.md", []float32{1, 0, 0, 0})
	seedDocument(t, s, "/far.md", []float32{0, 0, 0, 1})
	mid := seedDocument(t, s, "/mid.md", []float32{0.6, 0.8, 0, 0})
	seedDocument(t, s, "/none.md", nil)

	hits, err := s.NearestChunks(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, near.ID, hits[0].Chunk.DocumentID)
	assert.Equal(t, "/near.md", hits[0].SourceURI)
	assert.Equal(t, "near.md", hits[0].Metadata["original_filename"])
	assert.InDelta(t, 0, hits[0].Distance, 1e-9)

	assert.Equal(t, mid.ID, hits[1].Chunk.DocumentID)
	assert.InDelta(t, math.Sqrt(0.4*0.4+0.8*0.8), hits[1].Distance, 1e-6)

	all, err := s.NearestChunks(ctx, []float32{1, 0, 0, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, all, 3, "chunks without embeddings are not candidates")
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Distance, all[i].Distance)
	}
}

func TestBoltStoreNearestChunksQueryDimension(t *testing.T) {
	s := newTestStore(t)

	_, err := s.NearestChunks(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestBoltStoreListDocuments(t *testing.T) {
	s := newTestStore(t)
	seedDocument(t, s, "/one.md")
	seedDocument(t, s, "/two.md")

	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestBoltStoreMigrate(t *testing.T) {
	s := newTestStore(t)
	cfg := config.DefaultConfig().Embedding

	result, err := s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.True(t, result.NeedsMigration)

	require.NoError(t, s.Migrate(cfg))

	result, err = s.CheckMigration(cfg)
	require.NoError(t, err)
	assert.False(t, result.NeedsMigration)
	assert.False(t, result.NeedsRebuild)

	changed := cfg
	changed.Provider = "openai"
	result, err = s.CheckMigration(changed)
	require.NoError(t, err)
	assert.True(t, result.NeedsRebuild)
	assert.ErrorIs(t, s.Migrate(changed), ErrEmbeddingChanged)

	disabled := cfg
	disabled.Provider = "none"
	assert.NoError(t, s.Migrate(disabled))
}

func TestBoltStoreClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cfg := config.DefaultConfig().Embedding
	require.NoError(t, s.Migrate(cfg))

	doc := seedDocument(t, s, "/clear.md", []float32{1, 0, 0, 0})
	require.NoError(t, s.Clear())

	_, err := s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	info, err := s.GetSchemaInfo()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, info.Version)
	assert.Empty(t, info.EmbeddingHash)

	changed := cfg
	changed.Provider = "ollama"
	assert.NoError(t, s.Migrate(changed))
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 5.0, L2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.True(t, math.IsInf(L2Distance([]float32{1}, []float32{1, 2}), 1))
}
