package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/models"
	"github.com/ppdb-nexus/admissions-api/internal/service"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/export"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// AnnouncementHandler exposes the Announcement component:
// publishing results and the public/anonymous result lookup.
type AnnouncementHandler struct {
	selection   *service.SelectionService
	pdfExporter *export.PDFExporter
}

// NewAnnouncementHandler constructs an AnnouncementHandler.
func NewAnnouncementHandler(selection *service.SelectionService, pdfExporter *export.PDFExporter) *AnnouncementHandler {
	return &AnnouncementHandler{selection: selection, pdfExporter: pdfExporter}
}

// Announce godoc
// @Summary Publish selection results and notify applicants
// @Tags announcement
// @Success 204
// @Router /periods/{period_id}/announce [post]
func (h *AnnouncementHandler) Announce(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	if err := h.selection.Announce(c.Request.Context(), periodID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CheckResult godoc
// @Summary Look up a selection result by registration number and NISN
// @Tags announcement
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/announcements/check-result [get]
func (h *AnnouncementHandler) CheckResult(c *gin.Context) {
	number := c.Query("registration_number")
	nisn := c.Query("nisn")
	if number == "" || nisn == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "registration_number and nisn are required"))
		return
	}
	periodID, err := models.PeriodFromRegistrationNumber(number)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "result not found"))
		return
	}
	view, err := h.selection.CheckResult(c.Request.Context(), periodID, number, nisn)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ResultPDF godoc
// @Summary Download a printable PDF of a single announced result
// @Tags announcement
// @Produce application/pdf
// @Success 200 {file} binary
// @Router /public/announcements/result.pdf [get]
func (h *AnnouncementHandler) ResultPDF(c *gin.Context) {
	number := c.Query("registration_number")
	nisn := c.Query("nisn")
	if number == "" || nisn == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "registration_number and nisn are required"))
		return
	}
	periodID, err := models.PeriodFromRegistrationNumber(number)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "result not found"))
		return
	}
	view, err := h.selection.CheckResult(c.Request.Context(), periodID, number, nisn)
	if err != nil {
		response.Error(c, err)
		return
	}
	score := ""
	if view.SelectionScore != nil {
		score = fmt.Sprintf("%.2f", *view.SelectionScore)
	}
	ranking := ""
	if view.Ranking != nil {
		ranking = strconv.Itoa(*view.Ranking)
	}
	dataset := export.Dataset{
		Headers: []string{"Field", "Value"},
		Rows: []map[string]string{
			{"Field": "Registration Number", "Value": view.RegistrationNumber},
			{"Field": "Student Name", "Value": view.StudentName},
			{"Field": "Path", "Value": view.PathName},
			{"Field": "Status", "Value": view.Status},
			{"Field": "Score", "Value": score},
			{"Field": "Ranking", "Value": ranking},
		},
	}
	pdfBytes, err := h.pdfExporter.Render(dataset, "PPDB Selection Result")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render result pdf"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", view.RegistrationNumber))
	c.Data(http.StatusOK, "application/pdf", pdfBytes)
}
