package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func (s *Service) UploadDocument(ctx context.Context, productID string, in UploadDocumentInput) (domain.Document, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Document{}, fmt.Errorf("%w: document name is required", domain.ErrInvalidItem)
	}
	if len(in.Data) == 0 {
		return domain.Document{}, fmt.Errorf("%w: document content is required", domain.ErrInvalidItem)
	}
	if int64(len(in.Data)) > s.cfg.MaxSendPayloadBytes {
		return domain.Document{}, &domain.PayloadTooLargeError{Total: int64(len(in.Data)), Limit: s.cfg.MaxSendPayloadBytes}
	}
	docType, err := s.catalog.GetType(ctx, productID, in.TypeID)
	if err != nil {
		return domain.Document{}, err
	}
	categoryID := in.CategoryID
	if categoryID == "" {
		categoryID = docType.CategoryID
	}
	if categoryID != docType.CategoryID {
		return domain.Document{}, fmt.Errorf("%w: type %s does not belong to category %s", domain.ErrInvalidItem, docType.ID, categoryID)
	}
	if _, err := s.catalog.GetCategory(ctx, productID, categoryID); err != nil {
		return domain.Document{}, err
	}

	now := s.nowFn()
	fileID := uuid.NewString()
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.files.Put(ctx, storageKey(productID, fileID), in.Data, contentType); err != nil {
		return domain.Document{}, fmt.Errorf("%w: store content: %v", domain.ErrDependencyUnavailable, err)
	}
	owner := in.Owner
	if owner.CompanyID == "" {
		owner.CompanyID = s.cfg.CompanyID
	}
	doc := domain.Document{
		ID:          uuid.NewString(),
		ProductID:   productID,
		CategoryID:  categoryID,
		TypeID:      docType.ID,
		Name:        in.Name,
		Owner:       owner,
		Content:     domain.Content{FileID: fileID, Size: int64(len(in.Data))},
		ContentHash: hashContent(in.Data),
		State:       domain.DocumentStatePending,
		SharedWith:  []domain.ShareEntry{},
		Context:     in.Context,
		Comment:     in.Comment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return domain.Document{}, err
	}
	s.log(ctx, "upload_document").InfoContext(ctx, "document uploaded",
		"outcome", "success",
		"product_id", productID,
		"document_id", doc.ID,
	)
	return doc, nil
}

func (s *Service) GetDocument(ctx context.Context, productID, documentID string) (domain.Document, error) {
	return s.documents.Get(ctx, productID, documentID)
}

func (s *Service) ListDocuments(ctx context.Context, productID string) ([]domain.Document, error) {
	return s.documents.ListByProduct(ctx, productID)
}

func (s *Service) DeleteDocument(ctx context.Context, productID, documentID string) error {
	doc, err := s.documents.Get(ctx, productID, documentID)
	if err != nil {
		return err
	}
	if err := doc.CanDelete(); err != nil {
		return err
	}
	return s.documents.Delete(ctx, productID, documentID)
}

// RegisterDocument submits a pending document to the external registrar. The document stays
// Pending until the transaction result arrives.
func (s *Service) RegisterDocument(ctx context.Context, productID, documentID string) (domain.Document, error) {
	doc, err := s.documents.Get(ctx, productID, documentID)
	if err != nil {
		return domain.Document{}, err
	}
	if doc.State.IsTerminal() {
		return domain.Document{}, fmt.Errorf("%w: document %s is already %s", domain.ErrInvalidOperation, doc.DisplayName(), doc.State)
	}
	if doc.IsReceived() {
		return domain.Document{}, fmt.Errorf("%w: document %s is owned by %s", domain.ErrInvalidOperation, doc.DisplayName(), doc.SharedBy)
	}
	if s.cfg.RegistrarID == "" {
		return domain.Document{}, fmt.Errorf("%w: no registrar configured", domain.ErrDependencyUnavailable)
	}
	_, err = s.send(ctx, productID, "", s.cfg.RegistrarID, contracts.RegistrationRequestEvent{
		DocumentID:  doc.ID,
		ContentHash: doc.ContentHash,
		FileID:      doc.Content.FileID,
	})
	if err != nil {
		return domain.Document{}, domain.AttachMessagingContext(err, "", []string{doc.ID})
	}
	return doc, nil
}

// ApplyTransactionResult finalizes a document registration. Terminal documents reject the
// result with ErrInvalidOperation.
func (s *Service) ApplyTransactionResult(ctx context.Context, productID string, ev contracts.TransactionResultEvent) (domain.Document, error) {
	now := s.nowFn()
	doc, err := s.documents.Mutate(ctx, productID, ev.DocumentID, func(d *domain.Document) error {
		if ev.Success {
			return d.Register(ev.Signature, ev.Hash, ev.TxID, now)
		}
		return d.Fail(ev.TxID, now)
	})
	if err != nil {
		return domain.Document{}, err
	}
	s.enqueueLocalEvent(ctx, contracts.LocalEventDocumentRegistered, productID, map[string]any{
		"documentId": doc.ID,
		"state":      string(doc.State),
		"txId":       ev.TxID,
	})
	return doc, nil
}

// storedSize prefers the size recorded by file storage and falls back to the document metadata.
func (s *Service) storedSize(ctx context.Context, doc domain.Document) (int64, error) {
	if s.files == nil || doc.Content.FileID == "" {
		return doc.Content.Size, nil
	}
	size, err := s.files.Size(ctx, storageKey(doc.ProductID, doc.Content.FileID))
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return doc.Content.Size, nil
		}
		return 0, fmt.Errorf("%w: content size of %s: %v", domain.ErrDependencyUnavailable, doc.DisplayName(), err)
	}
	return size, nil
}

func (s *Service) loadContent(ctx context.Context, doc domain.Document) ([]byte, error) {
	if s.files == nil || doc.Content.FileID == "" {
		return nil, nil
	}
	data, err := s.files.Get(ctx, storageKey(doc.ProductID, doc.Content.FileID))
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: content of %s: %v", domain.ErrDependencyUnavailable, doc.DisplayName(), err)
	}
	return data, nil
}
