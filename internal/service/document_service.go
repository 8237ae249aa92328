package service

import (
	"context"
	"database/sql"
	"errors"
	"mime"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/repository"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
)

// DocumentService manages documents attached to draft registrations.
// Verification decisions live in VerificationService.
type DocumentService struct {
	store     *repository.Store
	documents *repository.DocumentRepository
	logger    *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(store *repository.Store, documents *repository.DocumentRepository, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{store: store, documents: documents, logger: logger}
}

// Attach uploads a document to a draft registration. Attaching a second
// document of the same type orphans the previous one atomically.
func (s *DocumentService) Attach(ctx context.Context, reg *models.Registration, docType models.DocumentType, fileURL, fileName string, fileSize int64, mimeType string) (*models.Document, error) {
	if reg.Status != models.RegistrationDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, "documents may only be attached to a draft registration")
	}
	if fileSize > models.MaxDocumentSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	baseType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		baseType = mimeType
	}
	if _, ok := models.AllowedDocumentMIMEs[baseType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported document mime type")
	}

	doc := &models.Document{
		RegistrationID: reg.ID,
		DocumentType:   docType,
		FileURL:        fileURL,
		FileName:       fileName,
		FileSize:       fileSize,
		MimeType:       baseType,
	}

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		previous, err := s.documents.FindActiveByType(ctx, reg.ID, docType)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if previous != nil {
			if err := s.documents.OrphanWithinTx(ctx, tx, previous.ID); err != nil {
				return err
			}
		}
		return s.documents.CreateWithinTx(ctx, tx, doc)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach document")
	}
	return doc, nil
}

// Detach orphans a document on a draft registration.
func (s *DocumentService) Detach(ctx context.Context, reg *models.Registration, docID int64) error {
	if reg.Status != models.RegistrationDraft {
		return appErrors.Clone(appErrors.ErrConflict, "documents may only be detached from a draft registration")
	}
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if doc.RegistrationID != reg.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.documents.OrphanWithinTx(ctx, tx, docID)
	})
}

// Get returns a document, scoped to the registration it must belong to.
func (s *DocumentService) Get(ctx context.Context, reg *models.Registration, docID int64) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	if doc.RegistrationID != reg.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

// List returns every active document on a registration.
func (s *DocumentService) List(ctx context.Context, registrationID int64) ([]models.Document, error) {
	docs, err := s.documents.ListActiveByRegistration(ctx, registrationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// HasRequiredSet reports whether every document type required for pathType
// has at least one active (any verification status) document attached
// (upload presence gates Submit, not per-document verification).
func (s *DocumentService) HasRequiredSet(ctx context.Context, registrationID int64, pathType models.PathType) (bool, []models.DocumentType, error) {
	required, ok := models.RequiredDocumentSets[pathType]
	if !ok {
		return false, nil, appErrors.Clone(appErrors.ErrInternal, "unknown path type")
	}
	active, err := s.documents.ListActiveByRegistration(ctx, registrationID)
	if err != nil {
		return false, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	present := make(map[models.DocumentType]bool, len(active))
	for _, doc := range active {
		present[doc.DocumentType] = true
	}
	var missing []models.DocumentType
	for _, docType := range required {
		if !present[docType] {
			missing = append(missing, docType)
		}
	}
	return len(missing) == 0, missing, nil
}
