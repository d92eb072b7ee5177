package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json body")
		return false
	}
	return true
}

func productID(r *http.Request) string {
	return chi.URLParam(r, "productId")
}

func direction(w http.ResponseWriter, r *http.Request) (domain.RequestDirection, bool) {
	switch d := domain.RequestDirection(chi.URLParam(r, "direction")); d {
	case domain.RequestIncoming, domain.RequestOutgoing:
		return d, true
	default:
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "unknown request direction")
		return "", false
	}
}

func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "event stream disabled")
		return
	}
	h.events.Serve(w, r, productID(r))
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var req application.UploadDocumentInput
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.service.UploadDocument(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListDocuments(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, docs)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.GetDocument(r.Context(), productID(r), chi.URLParam(r, "documentId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDocument(r.Context(), productID(r), chi.URLParam(r, "documentId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "document deleted")
}

func (h *Handler) registerDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.RegisterDocument(r.Context(), productID(r), chi.URLParam(r, "documentId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusAccepted, doc)
}

func (h *Handler) sendDocuments(w http.ResponseWriter, r *http.Request) {
	var req application.SendDocumentsInput
	if !decodeBody(w, r, &req) {
		return
	}
	docs, err := h.service.SendDocumentsIdempotent(r.Context(), productID(r), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, docs)
}

func (h *Handler) listSharedDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListSharedDocuments(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) getSharedDocuments(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetSharedDocuments(r.Context(), productID(r), chi.URLParam(r, "sharedDocumentsId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}

func (h *Handler) listReceivedDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListReceivedDocuments(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) getReceivedDocuments(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetReceivedDocuments(r.Context(), productID(r), chi.URLParam(r, "receivedDocumentsId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}

func (h *Handler) updateDocumentsStatus(w http.ResponseWriter, r *http.Request) {
	var req application.UpdateStatusInput
	if !decodeBody(w, r, &req) {
		return
	}
	progress, err := h.service.UpdateDocumentsStatus(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, progress)
}

func (h *Handler) sendFeedback(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.SendFeedback(r.Context(), productID(r), chi.URLParam(r, "receivedDocumentsId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}
