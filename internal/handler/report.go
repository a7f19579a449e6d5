package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"go.uber.org/zap"
)

// ReportHandler implements monthly report endpoints
type ReportHandler struct {
	service *service.ReportService
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *service.ReportService, recorder audit.Recorder, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		audit:   recorder,
		logger:  logger,
	}
}

// GenerateReport renders and stores the monthly clinical report
func (h *ReportHandler) GenerateReport(c *gin.Context, userId types.UUID) {
	var req api.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body", err)
		return
	}

	var value string
	if req.Month != nil {
		value = *req.Month
	}
	month, err := service.ParseMonth(value, h.service.Now())
	if err != nil {
		writeError(c, h.logger, err, "Invalid report month")
		return
	}

	report, err := h.service.GenerateMonthlyReport(c.Request.Context(), uuidToString(userId), month)
	if err != nil {
		writeError(c, h.logger, err, "Failed to generate report")
		return
	}
	recordAudit(c, h.audit, h.logger, report.UserID, audit.OperationExport, audit.ResourceReport, report.BlobName)
	c.JSON(http.StatusCreated, report)
}

// DownloadReport returns a stored report PDF
func (h *ReportHandler) DownloadReport(c *gin.Context, userId types.UUID, month string) {
	m, err := service.ParseMonth(month, h.service.Now())
	if err != nil {
		writeError(c, h.logger, err, "Invalid report month")
		return
	}

	data, err := h.service.DownloadReport(c.Request.Context(), uuidToString(userId), m)
	if err != nil {
		writeError(c, h.logger, err, "Failed to download report")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\"report-"+month+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", data)
}
