package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// PathHandler exposes the RegistrationPath component.
type PathHandler struct {
	paths *service.PathService
}

// NewPathHandler constructs a PathHandler.
func NewPathHandler(paths *service.PathService) *PathHandler {
	return &PathHandler{paths: paths}
}

type createPathRequest struct {
	PeriodID      int64           `json:"period_id" validate:"required"`
	PathType      models.PathType `json:"path_type" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Quota         int             `json:"quota" validate:"required,min=1"`
	Description   string          `json:"description"`
	ScoringConfig json.RawMessage `json:"scoring_config"`
}

// Create godoc
// @Summary Create a registration path within a period
// @Tags paths
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /periods/{period_id}/paths [post]
func (h *PathHandler) Create(c *gin.Context) {
	var req createPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	path := &models.RegistrationPath{
		PeriodID:      req.PeriodID,
		PathType:      req.PathType,
		Name:          req.Name,
		Quota:         req.Quota,
		Description:   req.Description,
		ScoringConfig: []byte(req.ScoringConfig),
	}
	if err := h.paths.Create(c.Request.Context(), path); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, path)
}

// Get godoc
// @Summary Fetch a registration path
// @Tags paths
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /paths/{id} [get]
func (h *PathHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid path id"))
		return
	}
	path, err := h.paths.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}

// ListByPeriod godoc
// @Summary List a period's registration paths
// @Tags paths
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/paths [get]
func (h *PathHandler) ListByPeriod(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	paths, err := h.paths.ListByPeriod(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paths, nil)
}

type updatePathRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// Update godoc
// @Summary Rename a registration path or change its description
// @Tags paths
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /paths/{id} [put]
func (h *PathHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid path id"))
		return
	}
	var req updatePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	path, err := h.paths.Update(c.Request.Context(), id, req.Name, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}

// Delete godoc
// @Summary Delete a registration path with no registrations on it
// @Tags paths
// @Success 204
// @Router /paths/{id} [delete]
func (h *PathHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid path id"))
		return
	}
	if err := h.paths.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type updateQuotaRequest struct {
	Quota int `json:"quota" validate:"required,min=1"`
}

// UpdateQuota godoc
// @Summary Change a path's quota
// @Tags paths
// @Accept json
// @Produce json
// @Success 204
// @Router /paths/{id}/quota [patch]
func (h *PathHandler) UpdateQuota(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid path id"))
		return
	}
	var req updateQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.paths.UpdateQuota(c.Request.Context(), id, req.Quota); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateScoringConfig godoc
// @Summary Replace a path's scoring configuration
// @Tags paths
// @Accept json
// @Produce json
// @Success 204
// @Router /paths/{id}/scoring-config [patch]
func (h *PathHandler) UpdateScoringConfig(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid path id"))
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	if err := h.paths.UpdateScoringConfig(c.Request.Context(), id, body); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
