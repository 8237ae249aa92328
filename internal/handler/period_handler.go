package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	"github.com/ppdb-nexus/admissions-api/internal/tenantctx"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// PeriodHandler exposes the admission-period lifecycle.
type PeriodHandler struct {
	periods *service.PeriodService
}

// NewPeriodHandler constructs a PeriodHandler.
func NewPeriodHandler(periods *service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

type periodRequest struct {
	SchoolID             int64        `json:"school_id" validate:"required"`
	AcademicYear         string       `json:"academic_year" validate:"required"`
	Level                models.Level `json:"level" validate:"required"`
	StartDate            time.Time    `json:"start_date" validate:"required"`
	EndDate              time.Time    `json:"end_date" validate:"required"`
	RegistrationStart    time.Time    `json:"registration_start" validate:"required"`
	RegistrationEnd      time.Time    `json:"registration_end" validate:"required"`
	ReenrollmentDeadline time.Time    `json:"reenrollment_deadline" validate:"required"`
}

// Create godoc
// @Summary Create an admission period
// @Tags periods
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	period := &models.Period{
		SchoolID:             req.SchoolID,
		AcademicYear:         req.AcademicYear,
		Level:                req.Level,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		RegistrationStart:    req.RegistrationStart,
		RegistrationEnd:      req.RegistrationEnd,
		ReenrollmentDeadline: req.ReenrollmentDeadline,
	}
	if err := h.periods.Create(c.Request.Context(), period); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Get godoc
// @Summary Fetch an admission period
// @Tags periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	period, err := h.periods.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// List godoc
// @Summary List admission periods visible to the caller's scope
// @Tags periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	periods, pagination, err := h.periods.List(c.Request.Context(), scope, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Update godoc
// @Summary Update a draft admission period
// @Tags periods
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [put]
func (h *PeriodHandler) Update(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	existing, err := h.periods.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	existing.AcademicYear = req.AcademicYear
	existing.Level = req.Level
	existing.StartDate = req.StartDate
	existing.EndDate = req.EndDate
	existing.RegistrationStart = req.RegistrationStart
	existing.RegistrationEnd = req.RegistrationEnd
	existing.ReenrollmentDeadline = req.ReenrollmentDeadline
	if err := h.periods.Update(c.Request.Context(), scope, existing); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, existing, nil)
}

// Delete godoc
// @Summary Delete a draft admission period
// @Tags periods
// @Success 204
// @Router /periods/{id} [delete]
func (h *PeriodHandler) Delete(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	if err := h.periods.Delete(c.Request.Context(), scope, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Activate godoc
// @Summary Activate a draft admission period
// @Tags periods
// @Success 204
// @Router /periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	if err := h.periods.Activate(c.Request.Context(), scope, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Close godoc
// @Summary Close an active admission period
// @Tags periods
// @Success 204
// @Router /periods/{id}/close [post]
func (h *PeriodHandler) Close(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	if err := h.periods.Close(c.Request.Context(), scope, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
