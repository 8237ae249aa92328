package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
	"github.com/ppdb-nexus/admissions-api/pkg/storage"
)

// DocumentHandler exposes document upload/detach on a draft registration.
// The handler resolves storage; DocumentService remains storage-agnostic,
// tracking only the resulting URL.
type DocumentHandler struct {
	registrations *service.RegistrationService
	documents     *service.DocumentService
	storage       *storage.LocalStorage
	signer        *storage.SignedURLSigner
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(registrations *service.RegistrationService, documents *service.DocumentService, storage *storage.LocalStorage, signer *storage.SignedURLSigner) *DocumentHandler {
	return &DocumentHandler{registrations: registrations, documents: documents, storage: storage, signer: signer}
}

// Upload godoc
// @Summary Attach a document to a draft registration
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /registrations/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	scope, ok := tenantctx.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	regID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), scope, regID)
	if err != nil {
		response.Error(c, err)
		return
	}
	docType := models.DocumentType(c.PostForm("document_type"))
	if docType == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document_type is required"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > models.MaxDocumentSizeBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file"))
		return
	}
	defer file.Close() //nolint:errcheck

	relPath := fmt.Sprintf("documents/%d/%s-%s", regID, uuid.NewString(), fileHeader.Filename)
	stored, err := h.storage.SaveStream(relPath, file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document"))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	doc, err := h.documents.Attach(c.Request.Context(), reg, docType, stored, fileHeader.Filename, fileHeader.Size, mimeType)
	if err != nil {
		_ = h.storage.Delete(stored)
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List a registration's active documents
// @Tags documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	regID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	if _, err := h.registrations.Get(c.Request.Context(), scope, regID); err != nil {
		response.Error(c, err)
		return
	}
	docs, err := h.documents.List(c.Request.Context(), regID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Download godoc
// @Summary Mint a time-limited signed download link for a document
// @Tags documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/documents/{doc_id}/download [post]
func (h *DocumentHandler) Download(c *gin.Context) {
	scope, ok := tenantctx.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	regID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	docID, err := strconv.ParseInt(c.Param("doc_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid document id"))
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), scope, regID)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), reg, docID)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.signer.Generate(strconv.FormatInt(doc.ID, 10), doc.FileURL)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"url":        "/public/documents/download/" + token,
	}, nil)
}

// ServeSignedDownload godoc
// @Summary Serve a document referenced by a signed download token
// @Tags documents
// @Produce octet-stream
// @Success 200
// @Router /public/documents/download/{token} [get]
func (h *DocumentHandler) ServeSignedDownload(c *gin.Context) {
	token := c.Param("token")
	docID, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}
	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "document not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="document-%s"`, docID))
	http.ServeContent(c.Writer, c.Request, relPath, time.Time{}, file)
}

// Detach godoc
// @Summary Detach a document from a draft registration
// @Tags documents
// @Success 204
// @Router /registrations/{id}/documents/{doc_id} [delete]
func (h *DocumentHandler) Detach(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	regID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	docID, err := strconv.ParseInt(c.Param("doc_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid document id"))
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), scope, regID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.documents.Detach(c.Request.Context(), reg, docID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
