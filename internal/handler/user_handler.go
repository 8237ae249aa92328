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

// UserHandler exposes account management.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=8"`
	FullName   string      `json:"full_name" validate:"required"`
	Phone      *string     `json:"phone"`
	NationalID *string     `json:"national_id"`
	Role       models.Role `json:"role" validate:"required"`
	SchoolID   *int64      `json:"school_id"`
}

// Create godoc
// @Summary Create a user account
// @Tags users
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	user := &models.User{
		Email:      req.Email,
		FullName:   req.FullName,
		Phone:      req.Phone,
		NationalID: req.NationalID,
		Role:       req.Role,
		SchoolID:   req.SchoolID,
	}
	if err := h.users.Create(c.Request.Context(), scope, user, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Get godoc
// @Summary Fetch a user by ID
// @Tags users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid user id"))
		return
	}
	user, err := h.users.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Me godoc
// @Summary Fetch the caller's own account
// @Tags users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	scope, ok := tenantctx.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	user, err := h.users.Me(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateMe godoc
// @Summary Update the caller's own profile
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me [put]
func (h *UserHandler) UpdateMe(c *gin.Context) {
	scope, ok := tenantctx.FromContext(c.Request.Context())
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	existing, err := h.users.Get(c.Request.Context(), scope, scope.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	existing.FullName = req.FullName
	existing.Phone = req.Phone
	existing.NationalID = req.NationalID
	if err := h.users.Update(c.Request.Context(), scope, existing); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, existing, nil)
}

// List godoc
// @Summary List users visible to the caller's scope
// @Tags users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	filter := models.UserFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}
	if role := c.Query("role"); role != "" {
		r := models.Role(role)
		filter.Role = &r
	}
	if schoolID := c.Query("school_id"); schoolID != "" {
		if id, err := strconv.ParseInt(schoolID, 10, 64); err == nil {
			filter.SchoolID = &id
		}
	}
	users, pagination, err := h.users.List(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

type updateUserRequest struct {
	FullName   string  `json:"full_name" validate:"required"`
	Phone      *string `json:"phone"`
	NationalID *string `json:"national_id"`
}

// Update godoc
// @Summary Update a user's profile
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid user id"))
		return
	}
	existing, err := h.users.Get(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	existing.FullName = req.FullName
	existing.Phone = req.Phone
	existing.NationalID = req.NationalID
	if err := h.users.Update(c.Request.Context(), scope, existing); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, existing, nil)
}

// Delete godoc
// @Summary Soft-delete a user account
// @Tags users
// @Success 204
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	scope, _ := tenantctx.FromContext(c.Request.Context())
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid user id"))
		return
	}
	if err := h.users.Delete(c.Request.Context(), scope, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
