package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, contracts.SuccessResponse{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, contracts.SuccessResponse{Status: "success", Message: message})
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	requestID := requestIDFromContext(r.Context())
	writeJSON(w, statusCode, contracts.ErrorResponse{
		Status:    "error",
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Error: contracts.ErrorPayload{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapDomainError(err)
	writeError(w, r, status, code, msg)
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case domain.IsMessagingError(err):
		return http.StatusServiceUnavailable, "MESSAGING_ERROR", err.Error()
	case errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error()
	case errors.Is(err, domain.ErrInvalidItem):
		return http.StatusUnprocessableEntity, "INVALID_ITEM", err.Error()
	case errors.Is(err, domain.ErrInvalidOperation), errors.Is(err, domain.ErrNotRegistered):
		return http.StatusUnprocessableEntity, "INVALID_OPERATION", err.Error()
	case errors.Is(err, domain.ErrDuplicatedItem):
		return http.StatusConflict, "DUPLICATED_ITEM", err.Error()
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "IDEMPOTENCY_CONFLICT", err.Error()
	case errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
