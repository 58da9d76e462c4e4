package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ekb/internal/domain"
	"ekb/internal/port"
	"ekb/internal/usecase"
)

// UserIDHeader carries the caller identity set by the authenticating proxy.
const UserIDHeader = "X-User-ID"

type IngestionHandler struct {
	ingest      *usecase.IngestUseCase
	docs        *usecase.DocumentUseCase
	flows       port.FlowLoader
	defaultFlow string
}

func NewIngestionHandler(ingest *usecase.IngestUseCase, docs *usecase.DocumentUseCase, flows port.FlowLoader, defaultFlow string) *IngestionHandler {
	return &IngestionHandler{ingest: ingest, docs: docs, flows: flows, defaultFlow: defaultFlow}
}

type ingestRequest struct {
	FilePath         string `json:"file_path" binding:"required"`
	OriginalFilename string `json:"original_filename"`
	SizeBytes        int64  `json:"size_bytes"`
	ContentType      string `json:"content_type"`
	SpaceID          string `json:"space_id"`
	Flow             string `json:"flow"`
}

// POST /api/v1/ingestion/documents
func (h *IngestionHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	identity, err := identityFrom(c, req.SpaceID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_identity", err)
		return
	}

	flowName := strings.TrimSpace(req.Flow)
	if flowName == "" {
		flowName = h.defaultFlow
	}
	steps, err := h.flows.LoadSteps(flowName)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	doc, err := h.ingest.Ingest(c.Request.Context(), usecase.IngestRequest{
		FlowName: flowName,
		Steps:    steps,
		Input: domain.InputRef{
			Locator:      req.FilePath,
			OriginalName: req.OriginalFilename,
			SizeBytes:    req.SizeBytes,
			ContentType:  req.ContentType,
		},
		Identity: identity,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// GET /api/v1/ingestion/documents
func (h *IngestionHandler) List(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	RespondOK(c, gin.H{"documents": docs})
}

// GET /api/v1/ingestion/documents/:id
func (h *IngestionHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, doc)
}

// GET /api/v1/ingestion/documents/:id/chunks
func (h *IngestionHandler) Chunks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	chunks, err := h.docs.Chunks(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	RespondOK(c, gin.H{"doc_id": id, "chunks": chunks})
}

// DELETE /api/v1/ingestion/documents/:id
func (h *IngestionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type SearchHandler struct {
	search      *usecase.SearchUseCase
	defaultTopK int
}

func NewSearchHandler(search *usecase.SearchUseCase, defaultTopK int) *SearchHandler {
	return &SearchHandler{search: search, defaultTopK: defaultTopK}
}

type searchRequest struct {
	QueryText string `json:"query_text"`
	TopK      *int   `json:"top_k"`
}

// POST /api/v1/search/semantic
func (h *SearchHandler) Semantic(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	topK := h.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	resp, err := h.search.Search(c.Request.Context(), req.QueryText, topK)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, resp)
}

type HealthHandler struct {
	embedder port.Embedder
}

func NewHealthHandler(embedder port.Embedder) *HealthHandler {
	return &HealthHandler{embedder: embedder}
}

// GET /healthz reports process liveness and embedding model availability.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{
		"status":              "ok",
		"embedding_available": h.embedder.Available(),
		"embedding_model":     h.embedder.ModelName(),
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("document id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func identityFrom(c *gin.Context, spaceID string) (domain.Identity, error) {
	var identity domain.Identity
	if raw := strings.TrimSpace(c.GetHeader(UserIDHeader)); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return identity, errors.New(UserIDHeader + " must be a UUID")
		}
		identity.UserID = &id
	}
	if raw := strings.TrimSpace(spaceID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return identity, errors.New("space_id must be a UUID")
		}
		identity.SpaceID = &id
	}
	return identity, nil
}
