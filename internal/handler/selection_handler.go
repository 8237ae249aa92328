package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ppdb-nexus/admissions-api/internal/service"
	appErrors "github.com/ppdb-nexus/admissions-api/pkg/errors"
	"github.com/ppdb-nexus/admissions-api/pkg/export"
	"github.com/ppdb-nexus/admissions-api/pkg/response"
)

// SelectionHandler exposes the scoring and selection endpoints, plus a
// ranking CSV export.
type SelectionHandler struct {
	selection   *service.SelectionService
	csvExporter *export.CSVExporter
}

// NewSelectionHandler constructs a SelectionHandler.
func NewSelectionHandler(selection *service.SelectionService, csvExporter *export.CSVExporter) *SelectionHandler {
	return &SelectionHandler{selection: selection, csvExporter: csvExporter}
}

// CalculateScores godoc
// @Summary Score every verified registration in a period
// @Tags selection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/selection/scores [post]
func (h *SelectionHandler) CalculateScores(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	count, err := h.selection.CalculateScores(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"scored": count}, nil)
}

// UpdateRankings godoc
// @Summary Recompute per-path rankings from stored scores
// @Tags selection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/selection/rankings [post]
func (h *SelectionHandler) UpdateRankings(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	count, err := h.selection.UpdateRankings(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"ranked": count}, nil)
}

// RunSelection godoc
// @Summary Accept or reject every ranked registration against path quotas
// @Tags selection
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/{period_id}/selection/run [post]
func (h *SelectionHandler) RunSelection(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	force := c.Query("force") == "true"
	summary, err := h.selection.RunSelection(c.Request.Context(), periodID, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ExportCSV godoc
// @Summary Export a period's per-path ranking statistics as CSV
// @Tags selection
// @Produce text/csv
// @Success 200 {file} binary
// @Router /periods/{period_id}/selection/export.csv [get]
func (h *SelectionHandler) ExportCSV(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Param("period_id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid period id"))
		return
	}
	stats, err := h.selection.RankingStatistics(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows := make([]map[string]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, map[string]string{
			"path_id":   strconv.FormatInt(s.PathID, 10),
			"count":     strconv.Itoa(s.Count),
			"min_score": fmt.Sprintf("%.2f", s.MinScore),
			"max_score": fmt.Sprintf("%.2f", s.MaxScore),
			"avg_score": fmt.Sprintf("%.2f", s.AvgScore),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"path_id", "count", "min_score", "max_score", "avg_score"},
		Rows:    rows,
	}
	csvBytes, err := h.csvExporter.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export csv"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=period-%d-ranking.csv", periodID))
	c.Data(http.StatusOK, "text/csv", csvBytes)
}
