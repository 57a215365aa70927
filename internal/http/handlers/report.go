package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/english-trainer-backend/internal/domain/reports"
	"github.com/yungbote/english-trainer-backend/internal/http/response"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/services"
)

type ReportHandler struct {
	log     *logger.Logger
	reports services.ReportService
}

func NewReportHandler(log *logger.Logger, reportService services.ReportService) *ReportHandler {
	return &ReportHandler{log: log.With("handler", "ReportHandler"), reports: reportService}
}

// GET /api/reports/latest
func (h *ReportHandler) Latest(c *gin.Context) {
	row, err := h.reports.Latest(c.Request.Context())
	if err != nil {
		if response.FromError(c, err) {
			h.log.Error("latest report failed", "error", err)
		}
		return
	}
	var sum reports.Summary
	if err := json.Unmarshal(row.Summary, &sum); err != nil {
		h.log.Warn("stored report summary unreadable", "report_id", row.ID, "error", err)
	}
	response.RespondOK(c, gin.H{"report": gin.H{
		"id":           row.ID,
		"period_start": row.PeriodStart.Format("2006-01-02"),
		"period_end":   row.PeriodEnd.Format("2006-01-02"),
		"summary":      sum,
		"updated_at":   row.UpdatedAt,
	}})
}
