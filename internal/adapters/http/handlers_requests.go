package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func (h *Handler) requestDocuments(w http.ResponseWriter, r *http.Request) {
	var req application.RequestDocumentsInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.RequestDocuments(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	dir, ok := direction(w, r)
	if !ok {
		return
	}
	out, err := h.service.ListRequests(r.Context(), dir, productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	dir, ok := direction(w, r)
	if !ok {
		return
	}
	out, err := h.service.GetRequest(r.Context(), dir, productID(r), chi.URLParam(r, "requestId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) sendNote(w http.ResponseWriter, r *http.Request) {
	dir, ok := direction(w, r)
	if !ok {
		return
	}
	var req application.NoteInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.SendNote(r.Context(), productID(r), dir, chi.URLParam(r, "requestId"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

type dismissTypesRequest struct {
	Dismissals []application.DismissTypeInput `json:"dismissals"`
}

func (h *Handler) dismissTypes(w http.ResponseWriter, r *http.Request) {
	var req dismissTypesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.DismissTypes(r.Context(), productID(r), chi.URLParam(r, "requestId"), req.Dismissals)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) upsertCompany(w http.ResponseWriter, r *http.Request) {
	var req domain.Company
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "companyId")
	out, err := h.service.UpsertCompany(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}
