package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
)

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req application.CategoryInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.CreateCategory(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListCategories(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) renameCategory(w http.ResponseWriter, r *http.Request) {
	var req application.CategoryInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.RenameCategory(r.Context(), productID(r), chi.URLParam(r, "categoryId"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), productID(r), chi.URLParam(r, "categoryId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "category deleted")
}

func (h *Handler) createDocumentType(w http.ResponseWriter, r *http.Request) {
	var req application.DocumentTypeInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.CreateDocumentType(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out)
}

func (h *Handler) listDocumentTypes(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListDocumentTypes(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) updateDocumentType(w http.ResponseWriter, r *http.Request) {
	var req application.DocumentTypeInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.UpdateDocumentType(r.Context(), productID(r), chi.URLParam(r, "typeId"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deleteDocumentType(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDocumentType(r.Context(), productID(r), chi.URLParam(r, "typeId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "document type deleted")
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req application.TemplateInput
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.CreateTemplate(r.Context(), productID(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out)
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListTemplates(r.Context(), productID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetTemplate(r.Context(), productID(r), chi.URLParam(r, "templateId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), productID(r), chi.URLParam(r, "templateId")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "template deleted")
}
