package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// SchoolHandler exposes the Catalog component.
type SchoolHandler struct {
	schools *service.SchoolService
}

// NewSchoolHandler constructs a SchoolHandler.
func NewSchoolHandler(schools *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

type createSchoolRequest struct {
	Name    string `json:"name" validate:"required"`
	NPSN    string `json:"npsn" validate:"required,len=8"`
	Code    string `json:"code" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// Create godoc
// @Summary Register a school tenant
// @Tags schools
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req createSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	school := &models.School{
		Name:    req.Name,
		NPSN:    req.NPSN,
		Code:    req.Code,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
	}
	if err := h.schools.Create(c.Request.Context(), school); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// Get godoc
// @Summary Fetch a school by ID
// @Tags schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid school id"))
		return
	}
	school, err := h.schools.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// List godoc
// @Summary List schools
// @Tags schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	filter := models.SchoolFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if status := c.Query("status"); status != "" {
		s := models.SchoolStatus(status)
		filter.Status = &s
	}
	schools, pagination, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, pagination)
}

// Update godoc
// @Summary Update a school's profile
// @Tags schools
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid school id"))
		return
	}
	existing, err := h.schools.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req createSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	existing.Name = req.Name
	existing.NPSN = req.NPSN
	existing.Code = req.Code
	existing.Address = req.Address
	existing.Phone = req.Phone
	existing.Email = req.Email
	if err := h.schools.Update(c.Request.Context(), existing); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, existing, nil)
}

type setSchoolStatusRequest struct {
	Status models.SchoolStatus `json:"status" validate:"required"`
}

// SetStatus godoc
// @Summary Change a school's lifecycle status
// @Tags schools
// @Accept json
// @Produce json
// @Success 204
// @Router /schools/{id}/status [patch]
func (h *SchoolHandler) SetStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid school id"))
		return
	}
	var req setSchoolStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.schools.SetStatus(c.Request.Context(), id, req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
