package usecase

import (
	"context"

	"github.com/google/uuid"

	"ekb/internal/domain"
	"ekb/internal/logger"
	"ekb/internal/port"
)

// DocumentUseCase exposes read and delete operations over stored documents.
type DocumentUseCase struct {
	store port.CorpusStore
	log   *logger.Logger
}

func NewDocumentUseCase(store port.CorpusStore, log *logger.Logger) *DocumentUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentUseCase{store: store, log: log.With("component", "DocumentUseCase")}
}

func (u *DocumentUseCase) Get(ctx context.Context, id uuid.UUID) (domain.Document, error) {
	return u.store.GetDocument(ctx, id)
}

func (u *DocumentUseCase) List(ctx context.Context) ([]domain.Document, error) {
	return u.store.ListDocuments(ctx)
}

// Chunks returns the document's chunks in order.
func (u *DocumentUseCase) Chunks(ctx context.Context, id uuid.UUID) ([]domain.Chunk, error) {
	return u.store.ListChunks(ctx, id)
}

// Delete removes the document and, with it, every chunk it owns.
func (u *DocumentUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	if err := u.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	u.log.Info("document deleted", "doc_id", id)
	return nil
}
