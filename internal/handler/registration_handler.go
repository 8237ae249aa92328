package handler

import (
	"encoding/json"
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

// RegistrationHandler exposes the Registration component.
type RegistrationHandler struct {
	registrations *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(registrations *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

type registrationRequest struct {
	PathID             int64           `json:"path_id" validate:"required"`
	StudentName        string          `json:"student_name" validate:"required"`
	StudentNISN        string          `json:"student_nisn" validate:"required"`
	StudentBirthDate   time.Time       `json:"student_birth_date" validate:"required"`
	ParentName         string          `json:"parent_name" validate:"required"`
	ParentNIK          *string         `json:"parent_nik"`
	ParentPhone        string          `json:"parent_phone" validate:"required"`
	PreviousSchoolName *string         `json:"previous_school_name"`
	PathData           json.RawMessage `json:"path_data"`
}

func (r registrationRequest) toInput() service.RegistrationInput {
	return service.RegistrationInput{
		PathID:             r.PathID,
		StudentName:        r.StudentName,
		StudentNISN:        r.StudentNISN,
		StudentBirthDate:   r.StudentBirthDate,
		ParentName:         r.ParentName,
		ParentNIK:          r.ParentNIK,
		ParentPhone:        r.ParentPhone,
		PreviousSchoolName: r.PreviousSchoolName,
		PathData:           r.PathData,
	}
}

// Create godoc
// @Summary Create a draft registration in an admission period
// @Tags registrations
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /periods/{period_id}/registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	scope, ok := tenantctx.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reg, err := h.registrations.Create(c.Request.Context(), scope, periodID, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// Get godoc
// @Summary Fetch a registration
// @Tags registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// List godoc
// @Summary List registrations visible to the caller's scope
// @Tags registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	filter := models.RegistrationFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if periodID := c.Query("period_id"); periodID != "" {
		if id, err := strconv.ParseInt(periodID, 10, 64); err == nil {
			filter.PeriodID = &id
		}
	}
	if pathID := c.Query("path_id"); pathID != "" {
		if id, err := strconv.ParseInt(pathID, 10, 64); err == nil {
			filter.PathID = &id
		}
	}
	if status := c.Query("status"); status != "" {
		s := models.RegistrationStatus(status)
		filter.Status = &s
	}
	regs, pagination, err := h.registrations.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, pagination)
}

// Update godoc
// @Summary Edit a draft registration
// @Tags registrations
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [put]
func (h *RegistrationHandler) Update(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	reg, err := h.registrations.Update(c.Request.Context(), scope, id, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Submit godoc
// @Summary Submit a draft registration for review
// @Tags registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/submit [post]
func (h *RegistrationHandler) Submit(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	reg, err := h.registrations.Submit(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Enroll godoc
// @Summary Confirm re-enrollment of an accepted registration
// @Tags registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/enroll [post]
func (h *RegistrationHandler) Enroll(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid registration id"))
		return
	}
	reg, err := h.registrations.Enroll(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}
