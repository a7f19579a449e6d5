package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// HealthHandler implements vital reading endpoints
type HealthHandler struct {
	service *service.AdherenceService
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(service *service.AdherenceService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger,
	}
}

// LogVital records a vital reading
func (h *HealthHandler) LogVital(c *gin.Context, userId types.UUID) {
	var req api.LogVitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, "Invalid request body", err)
		return
	}

	reading := model.VitalReading{
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,
		Glucose:   req.Glucose,
		TSH:       req.TSH,
	}
	if req.Date != nil {
		reading.Date = req.Date.Time
	}

	userID := uuidToString(userId)
	stored, err := h.service.LogVital(c.Request.Context(), userID, reading)
	if err != nil {
		writeError(c, h.logger, err, "Failed to log vitals")
		return
	}

	h.logger.Info("vitals logged",
		zap.String("vital_id", stored.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, toVitalResponse(stored))
}

// ListVitals returns vital readings, newest first
func (h *HealthHandler) ListVitals(c *gin.Context, userId types.UUID) {
	vitals, err := h.service.Vitals(c.Request.Context(), uuidToString(userId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to list vitals")
		return
	}

	response := make([]api.VitalResponse, 0, len(vitals))
	for _, v := range vitals {
		response = append(response, toVitalResponse(v))
	}
	c.JSON(http.StatusOK, response)
}
