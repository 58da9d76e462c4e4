package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ekb/internal/domain"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps domain error kinds onto HTTP statuses: caller
// mistakes are 4xx, an unavailable model is 503, anything else is 500.
func RespondDomainError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		// Internal details stay in the log.
		_ = c.Error(err)
		RespondError(c, status, code, errors.New("internal error"))
		return
	}
	RespondError(c, status, code, err)
}

func classify(err error) (int, string) {
	if domain.IsClientError(err) {
		switch {
		case errors.Is(err, domain.ErrDocumentNotFound):
			return http.StatusNotFound, "document_not_found"
		case errors.Is(err, domain.ErrDuplicateSource):
			return http.StatusConflict, "duplicate_source"
		case errors.Is(err, domain.ErrInputNotFound):
			return http.StatusBadRequest, "input_not_found"
		case errors.Is(err, domain.ErrInvalidTopK):
			return http.StatusBadRequest, "invalid_top_k"
		case errors.Is(err, domain.ErrFlowNotFound):
			return http.StatusBadRequest, "flow_not_found"
		default:
			return http.StatusBadRequest, "invalid_request"
		}
	}

	switch {
	case errors.Is(err, domain.ErrSearchBackendUnavailable):
		return http.StatusServiceUnavailable, "search_backend_unavailable"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "embedding_unavailable"
	case errors.Is(err, domain.ErrExtractionFailure):
		return http.StatusInternalServerError, "extraction_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
