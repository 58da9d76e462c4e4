package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekb/internal/adapter/chunker"
	"ekb/internal/adapter/flow"
	"ekb/internal/adapter/memstore"
	"ekb/internal/adapter/processor"
	"ekb/internal/domain"
)

const dim = 3

// fakeEmbedder returns fixed vectors per text and a default for anything else.
type fakeEmbedder struct {
	available bool
	vectors   map[string][]float32
	fail      map[string]bool
	calls     atomic.Int32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{available: true, vectors: map[string][]float32{}, fail: map[string]bool{}}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if !f.available {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if f.fail[text] {
		return nil, errors.New("inference error")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) Available() bool   { return f.available }
func (f *fakeEmbedder) Dimension() int    { return dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }

type fixture struct {
	store    *memstore.MemoryStore
	embedder *fakeEmbedder
	ingest   *IngestUseCase
	search   *SearchUseCase
	docs     *DocumentUseCase
}

func newFixture(t *testing.T, targetSize int) *fixture {
	t.Helper()
	s := memstore.NewMemoryStore(dim)
	e := newFakeEmbedder()
	return &fixture{
		store:    s,
		embedder: e,
		ingest:   NewIngestUseCase(s, e, chunker.NewParagraphChunker(targetSize), processor.Default(), nil),
		search:   NewSearchUseCase(s, e, 100, nil),
		docs:     NewDocumentUseCase(s, nil),
	}
}

func markdownSteps(t *testing.T) []domain.Step {
	t.Helper()
	steps, err := flow.NewLoader("").LoadSteps(flow.MarkdownParserFlow)
	require.NoError(t, err)
	return steps
}

func writeInput(t *testing.T, name, content string) domain.InputRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return domain.InputRef{Locator: path}
}

func (f *fixture) run(t *testing.T, input domain.InputRef) domain.Document {
	t.Helper()
	doc, err := f.ingest.Ingest(context.Background(), IngestRequest{
		FlowName: flow.MarkdownParserFlow,
		Steps:    markdownSteps(t),
		Input:    input,
	})
	require.NoError(t, err)
	return doc
}

func TestIngestThreeParagraphsSingleChunk(t *testing.T) {
	f := newFixture(t, 1000)
	user, space := uuid.New(), uuid.New()

	doc, err := f.ingest.Ingest(context.Background(), IngestRequest{
		FlowName: flow.MarkdownParserFlow,
		Steps:    markdownSteps(t),
		Input:    writeInput(t, "paras.md", "Para one.\n\nPara two.\n\nPara three."),
		Identity: domain.Identity{UserID: &user, SpaceID: &space},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, domain.DocTypeMarkdown, doc.DocType)
	assert.Equal(t, user, *doc.UploadedBy)
	assert.Equal(t, space, *doc.SpaceID)
	assert.Equal(t, "paras.md", doc.Metadata["original_filename"])
	assert.Equal(t, flow.MarkdownParserFlow, doc.Metadata["flow_name"])
	require.NotNil(t, doc.LastProcessedAt)

	chunks, err := f.docs.Chunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Order)
	assert.Equal(t, "Para one.\n\nPara two.\n\nPara three.", chunks[0].Text)
	assert.Len(t, chunks[0].Embedding, dim)
}

func TestIngestOrderContiguousAndCascadeDelete(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()

	doc := f.run(t, writeInput(t, "three.md", "Para one.\n\nPara two.\n\nPara three."))

	chunks, err := f.docs.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Order)
	}

	require.NoError(t, f.docs.Delete(ctx, doc.ID))
	assert.Equal(t, 0, f.store.ChunkCount())
	_, err = f.docs.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestIngestEmbeddingUnavailable(t *testing.T) {
	f := newFixture(t, 1000)
	f.embedder.available = false

	doc := f.run(t, writeInput(t, "a.md", "Some text.\n\nMore text."))

	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, 0, f.store.ChunkCount())
	assert.Zero(t, f.embedder.calls.Load())
}

func TestIngestChunkEmbeddingFailureKeepsChunk(t *testing.T) {
	f := newFixture(t, 10)
	f.embedder.fail["bad chunk"] = true

	doc := f.run(t, writeInput(t, "mixed.md", "good one\n\nbad chunk\n\ngood two"))
	assert.Equal(t, domain.StatusCompleted, doc.Status)

	chunks, err := f.docs.Chunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.NotNil(t, chunks[0].Embedding)
	assert.Nil(t, chunks[1].Embedding)
	assert.Equal(t, "bad chunk", chunks[1].Text)
	assert.NotNil(t, chunks[2].Embedding)
}

func TestIngestEmptyTextCreatesNoChunks(t *testing.T) {
	f := newFixture(t, 1000)

	doc := f.run(t, writeInput(t, "blank.md", "  \n\n  "))
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Equal(t, 0, f.store.ChunkCount())
	assert.Zero(t, f.embedder.calls.Load())
}

func TestIngestUnknownStepsSkipped(t *testing.T) {
	f := newFixture(t, 1000)

	doc, err := f.ingest.Ingest(context.Background(), IngestRequest{
		Steps: []domain.Step{
			{Name: "ocr", Processor: "ocr_processor"},
			{Name: "read", Processor: "file_reader"},
			{Name: "extract", Processor: "text_extractor"},
		},
		Input: writeInput(t, "notes.txt", "plain notes"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DocTypeText, doc.DocType)
	assert.Equal(t, "plain notes", doc.ExtractedText)
	assert.Equal(t, 1, f.store.ChunkCount())
	assert.NotContains(t, doc.Metadata, "flow_name")
}

func TestIngestWithoutExtractionStep(t *testing.T) {
	f := newFixture(t, 1000)

	doc, err := f.ingest.Ingest(context.Background(), IngestRequest{
		Steps: []domain.Step{{Name: "read", Processor: "file_reader_processor"}},
		Input: writeInput(t, "raw.md", "content"),
	})
	require.NoError(t, err)
	assert.Empty(t, doc.ExtractedText)
	assert.Equal(t, domain.DocTypeUnknown, doc.DocType)
	assert.Equal(t, 0, f.store.ChunkCount())
}

func TestIngestInputNotFound(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.ingest.Ingest(context.Background(), IngestRequest{
		Steps: markdownSteps(t),
		Input: domain.InputRef{Locator: filepath.Join(t.TempDir(), "missing.md")},
	})
	assert.ErrorIs(t, err, domain.ErrInputNotFound)

	docs, err := f.docs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIngestDuplicateSource(t *testing.T) {
	f := newFixture(t, 1000)
	input := writeInput(t, "dup.md", "text")
	f.run(t, input)

	_, err := f.ingest.Ingest(context.Background(), IngestRequest{Steps: markdownSteps(t), Input: input})
	assert.ErrorIs(t, err, domain.ErrDuplicateSource)
}

func TestIngestChunkCommitFailureMarksFailed(t *testing.T) {
	f := newFixture(t, 1000)
	f.store.FailCreateChunks = errors.New("disk full")

	doc, err := f.ingest.Ingest(context.Background(), IngestRequest{
		Steps: markdownSteps(t),
		Input: writeInput(t, "fail.md", "text to chunk"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "disk full")

	stored, err := f.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newFixture(t, 1000)

	for _, q := range []string{"", "   \n"} {
		resp, err := f.search.Search(context.Background(), q, 10)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.NotNil(t, resp.Results)
	}
	assert.Zero(t, f.embedder.calls.Load())
}

func TestSearchInvalidTopK(t *testing.T) {
	f := newFixture(t, 1000)

	for _, k := range []int{0, -1, 101} {
		_, err := f.search.Search(context.Background(), "query", k)
		assert.ErrorIs(t, err, domain.ErrInvalidTopK)
	}
}

func TestSearchBackendUnavailable(t *testing.T) {
	f := newFixture(t, 1000)
	f.embedder.available = false

	_, err := f.search.Search(context.Background(), "query", 10)
	assert.ErrorIs(t, err, domain.ErrSearchBackendUnavailable)
	assert.False(t, domain.IsClientError(err))
}

func TestSearchQueryMatchingDocumentA(t *testing.T) {
	f := newFixture(t, 1000)
	f.embedder.vectors["alpha document"] = []float32{1, 0, 0}
	f.embedder.vectors["beta document"] = []float32{0, 1, 0}
	f.embedder.vectors["query for alpha"] = []float32{1, 0, 0}

	a := f.run(t, writeInput(t, "a.md", "alpha document"))
	f.run(t, writeInput(t, "b.md", "beta document"))

	resp, err := f.search.Search(context.Background(), "query for alpha", 1)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	hit := resp.Results[0]
	assert.Equal(t, a.ID, hit.DocumentID)
	assert.Equal(t, a.SourceURI, hit.SourceURI)
	assert.Equal(t, "alpha document", hit.ChunkText)
	assert.Equal(t, "a.md", hit.Metadata["original_filename"])
	assert.InDelta(t, 0, hit.Score, 1e-9)
	assert.Equal(t, "query for alpha", resp.QueryText)
}

func TestSearchResultsOrderedAndBounded(t *testing.T) {
	f := newFixture(t, 1000)
	vectors := [][]float32{{1, 0, 0}, {0.8, 0.6, 0}, {0, 1, 0}, {0, 0, 1}, {-1, 0, 0}}
	for i, v := range vectors {
		text := "doc " + string(rune('a'+i))
		f.embedder.vectors[text] = v
		f.run(t, writeInput(t, text+".md", text))
	}
	f.embedder.vectors["q"] = []float32{1, 0, 0}

	resp, err := f.search.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}

	resp, err = f.search.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Len(t, resp.Results, len(vectors))
}
