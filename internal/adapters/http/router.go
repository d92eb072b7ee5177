package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/application"
)

// EventStream serves the local event feed of one product.
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, productID string)
}

type Handler struct {
	service *application.Service
	events  EventStream
	logger  *slog.Logger
}

func NewHandler(service *application.Service, events EventStream, logger *slog.Logger) *Handler {
	return &Handler{service: service, events: events, logger: logger}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ok") })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeMessage(w, http.StatusOK, "ready") })

	r.Route("/v1", func(r chi.Router) {
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", handler.listCompanies)
			r.Put("/{companyId}", handler.upsertCompany)
		})

		r.Route("/products/{productId}", func(r chi.Router) {
			r.Get("/events", handler.streamEvents)

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", handler.createCategory)
				r.Get("/", handler.listCategories)
				r.Put("/{categoryId}", handler.renameCategory)
				r.Delete("/{categoryId}", handler.deleteCategory)
			})
			r.Route("/types", func(r chi.Router) {
				r.Post("/", handler.createDocumentType)
				r.Get("/", handler.listDocumentTypes)
				r.Put("/{typeId}", handler.updateDocumentType)
				r.Delete("/{typeId}", handler.deleteDocumentType)
			})
			r.Route("/templates", func(r chi.Router) {
				r.Post("/", handler.createTemplate)
				r.Get("/", handler.listTemplates)
				r.Get("/{templateId}", handler.getTemplate)
				r.Delete("/{templateId}", handler.deleteTemplate)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", handler.uploadDocument)
				r.Get("/", handler.listDocuments)
				r.Get("/{documentId}", handler.getDocument)
				r.Delete("/{documentId}", handler.deleteDocument)
				r.Post("/{documentId}/register", handler.registerDocument)
			})

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", handler.requestDocuments)
				r.Get("/{direction}", handler.listRequests)
				r.Get("/{direction}/{requestId}", handler.getRequest)
				r.Post("/{direction}/{requestId}/notes", handler.sendNote)
				r.Post("/incoming/{requestId}/dismissals", handler.dismissTypes)
			})

			r.Route("/shared-documents", func(r chi.Router) {
				r.Post("/", handler.sendDocuments)
				r.Get("/", handler.listSharedDocuments)
				r.Get("/{sharedDocumentsId}", handler.getSharedDocuments)
			})

			r.Route("/received-documents", func(r chi.Router) {
				r.Get("/", handler.listReceivedDocuments)
				r.Put("/status", handler.updateDocumentsStatus)
				r.Get("/{receivedDocumentsId}", handler.getReceivedDocuments)
				r.Post("/{receivedDocumentsId}/feedback", handler.sendFeedback)
			})
		})
	})
	return r
}
