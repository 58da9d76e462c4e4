package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ekb/internal/adapter/fs"
	"ekb/internal/adapter/processor"
	"ekb/internal/domain"
	"ekb/internal/logger"
	"ekb/internal/port"
)

// IngestUseCase drives one input through extraction, chunking, embedding and
// persistence.
type IngestUseCase struct {
	store      port.CorpusStore
	embedder   port.Embedder
	chunker    port.Chunker
	processors processor.Registry
	log        *logger.Logger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	store port.CorpusStore,
	embedder port.Embedder,
	chunker port.Chunker,
	processors processor.Registry,
	log *logger.Logger,
) *IngestUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &IngestUseCase{
		store:      store,
		embedder:   embedder,
		chunker:    chunker,
		processors: processors,
		log:        log.With("component", "IngestUseCase"),
	}
}

// IngestRequest describes one ingestion run.
type IngestRequest struct {
	FlowName string
	Steps    []domain.Step
	Input    domain.InputRef
	Identity domain.Identity
}

// Ingest runs the request's steps and persists the result. The document is
// committed before any chunk work so callers always get a durable reference;
// chunk and embedding failures after that point degrade the result instead of
// failing the call.
//
// Documents that need chunking are created as "processing" and flipped to
// "completed" only after the chunk batch commits, so readers never see a
// completed document with a partial chunk set. Between the two commits a
// processing document may briefly have no chunks.
func (u *IngestUseCase) Ingest(ctx context.Context, req IngestRequest) (domain.Document, error) {
	input, err := fs.Complete(req.Input)
	if err != nil {
		return domain.Document{}, err
	}
	log := u.log.With("source", input.Locator, "flow", req.FlowName)

	state := &port.StepState{Input: input}
	if err := u.runSteps(ctx, req.Steps, state, log); err != nil {
		return domain.Document{}, err
	}

	docType := state.DocType
	if docType == "" {
		docType = domain.DocTypeUnknown
	}
	text := state.Text
	hasText := strings.TrimSpace(text) != ""
	embeddable := hasText && u.embedder.Available()

	status := domain.StatusCompleted
	if embeddable {
		status = domain.StatusProcessing
	}

	doc, err := u.store.CreateDocument(ctx, domain.Document{
		SourceURI:     input.Locator,
		DocType:       docType,
		ExtractedText: text,
		Metadata:      documentMetadata(input, req.FlowName),
		SpaceID:       req.Identity.SpaceID,
		UploadedBy:    req.Identity.UserID,
		Status:        status,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to create document: %w", err)
	}
	log = log.With("doc_id", doc.ID)

	if !embeddable {
		if hasText {
			log.Warn("embedding model unavailable, document stored without chunks")
		}
		log.Info("document ingested", "status", doc.Status, "chunks", 0)
		return doc, nil
	}

	batch, embedded := u.embedChunks(ctx, u.chunker.Chunk(text), log)

	if _, err := u.store.CreateChunks(ctx, doc.ID, batch); err != nil {
		log.Error("chunk batch commit failed", "error", err)
		failed, uerr := u.store.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error())
		if uerr != nil {
			log.Error("failed to mark document failed", "error", uerr)
			return doc, nil
		}
		return failed, nil
	}
	log.Info("chunk batch committed", "chunks", len(batch), "embedded", embedded)

	completed, err := u.store.UpdateStatus(ctx, doc.ID, domain.StatusCompleted, "")
	if err != nil {
		return doc, fmt.Errorf("failed to complete document %s: %w", doc.ID, err)
	}
	return completed, nil
}

func (u *IngestUseCase) runSteps(ctx context.Context, steps []domain.Step, state *port.StepState, log *logger.Logger) error {
	for _, step := range steps {
		kind := step.Kind
		if kind == domain.StepUnknown {
			kind = domain.ParseStepKind(step.Processor)
		}
		p, ok := u.processors.Lookup(kind)
		if !ok {
			log.Warn("skipping unknown flow step", "step", step.Name, "processor", step.Processor)
			continue
		}
		if err := p.Process(ctx, step, state); err != nil {
			return err
		}
		log.Debug("flow step done", "step", step.Name, "kind", kind.String())
	}
	return nil
}

// embedChunks embeds every chunk; a failed chunk keeps a nil embedding.
func (u *IngestUseCase) embedChunks(ctx context.Context, texts []string, log *logger.Logger) ([]domain.NewChunk, int) {
	batch := make([]domain.NewChunk, len(texts))
	embedded := 0
	for i, text := range texts {
		batch[i].Text = text
		vec, err := u.embedder.Embed(ctx, text)
		if err != nil {
			log.Warn("chunk embedding unavailable", "chunk_order", i,
				"error", errors.Join(domain.ErrChunkEmbeddingFailure, err))
			continue
		}
		batch[i].Embedding = vec
		embedded++
	}
	return batch, embedded
}

func documentMetadata(input domain.InputRef, flowName string) map[string]any {
	meta := map[string]any{
		"original_filename": input.OriginalName,
		"size_bytes":        input.SizeBytes,
		"content_type":      input.ContentType,
	}
	if flowName != "" {
		meta["flow_name"] = flowName
	}
	return meta
}
