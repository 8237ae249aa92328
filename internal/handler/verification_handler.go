package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// VerificationHandler exposes the Verification component.
type VerificationHandler struct {
	verification *service.VerificationService
}

// NewVerificationHandler constructs a VerificationHandler.
func NewVerificationHandler(verification *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

// ListPending godoc
// @Summary List submitted registrations awaiting review
// @Tags verification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/verification/pending [get]
func (h *VerificationHandler) ListPending(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	regs, pagination, err := h.verification.ListPending(c.Request.Context(), scope, periodID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, pagination)
}

type verifyRequest struct {
	Notes string `json:"notes"`
}

// Verify godoc
// @Summary Verify a submitted registration
// @Tags verification
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/verify [post]
func (h *VerificationHandler) Verify(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	var req verifyRequest
	_ = c.ShouldBindJSON(&req)
	reg, err := h.verification.VerifyRegistration(c.Request.Context(), scope, id, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,min=10"`
}

// Reject godoc
// @Summary Reject a submitted registration
// @Tags verification
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *VerificationHandler) Reject(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reg, err := h.verification.RejectRegistration(c.Request.Context(), scope, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

type verifyDocumentRequest struct {
	Decision models.VerificationStatus `json:"decision" validate:"required"`
	Reason   *string                   `json:"reason"`
}

// VerifyDocument godoc
// @Summary Record an advisory decision on a single document
// @Tags verification
// @Accept json
// @Success 204
// @Router /documents/{doc_id}/verify [post]
func (h *VerificationHandler) VerifyDocument(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	docID, err := strconv.ParseInt(c.Param("doc_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid document id"))
		return
	}
	var req verifyDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.verification.VerifyDocument(c.Request.Context(), scope, docID, req.Decision, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Registration and document status counts for a period
// @Tags verification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/verification/stats [get]
func (h *VerificationHandler) Stats(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	stats, err := h.verification.Stats(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
