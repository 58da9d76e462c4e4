package usecase

import (
	"context"
	"fmt"
	"strings"

	"ekb/internal/domain"
	"ekb/internal/logger"
	"ekb/internal/port"
)

// MaxTopK is the largest result count a search may request.
const MaxTopK = 100

// SearchUseCase answers semantic queries by nearest-neighbor lookup.
type SearchUseCase struct {
	store    port.CorpusStore
	embedder port.Embedder
	maxTopK  int
	log      *logger.Logger
}

func NewSearchUseCase(store port.CorpusStore, embedder port.Embedder, maxTopK int, log *logger.Logger) *SearchUseCase {
	if maxTopK <= 0 || maxTopK > MaxTopK {
		maxTopK = MaxTopK
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SearchUseCase{
		store:    store,
		embedder: embedder,
		maxTopK:  maxTopK,
		log:      log.With("component", "SearchUseCase"),
	}
}

// Search returns at most topK results in ascending distance order. Score is
// the raw L2 distance: smaller is more similar. Blank queries return no
// results without touching the embedding model.
func (u *SearchUseCase) Search(ctx context.Context, query string, topK int) (domain.SearchResponse, error) {
	resp := domain.SearchResponse{QueryText: query, Results: []domain.SearchResult{}}

	if topK < 1 || topK > u.maxTopK {
		return resp, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, topK)
	}
	if strings.TrimSpace(query) == "" {
		return resp, nil
	}
	if !u.embedder.Available() {
		return resp, domain.ErrSearchBackendUnavailable
	}

	vec, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return resp, fmt.Errorf("%w: %v", domain.ErrSearchBackendUnavailable, err)
	}

	hits, err := u.store.NearestChunks(ctx, vec, topK)
	if err != nil {
		return resp, fmt.Errorf("nearest chunk lookup failed: %w", err)
	}

	for _, h := range hits {
		resp.Results = append(resp.Results, domain.SearchResult{
			DocumentID: h.Chunk.DocumentID,
			ChunkID:    h.Chunk.ID,
			ChunkText:  h.Chunk.Text,
			SourceURI:  h.SourceURI,
			Metadata:   h.Metadata,
			Score:      h.Distance,
		})
	}
	u.log.Debug("search served", "top_k", topK, "results", len(resp.Results))
	return resp, nil
}
