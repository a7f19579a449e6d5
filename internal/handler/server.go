package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"go.uber.org/zap"
)

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIHandler implements api.ServerInterface by delegating to the individual
// handlers
type APIHandler struct {
	Profile    *ProfileHandler
	Medication *MedicationHandler
	Health     *HealthHandler
	Dashboard  *DashboardHandler
	Report     *ReportHandler
	DB         Pinger
	Logger     *zap.Logger
}

var _ api.ServerInterface = (*APIHandler)(nil)

// Profile endpoints
func (h *APIHandler) CreateProfile(c *gin.Context) { h.Profile.CreateProfile(c) }

func (h *APIHandler) GetProfile(c *gin.Context, userId types.UUID) {
	h.Profile.GetProfile(c, userId)
}

func (h *APIHandler) UnlockProfile(c *gin.Context, userId types.UUID) {
	h.Profile.UnlockProfile(c, userId)
}

func (h *APIHandler) LockProfile(c *gin.Context, userId types.UUID) {
	h.Profile.LockProfile(c, userId)
}

func (h *APIHandler) SetConditions(c *gin.Context, userId types.UUID) {
	h.Profile.SetConditions(c, userId)
}

func (h *APIHandler) ReplaceSettings(c *gin.Context, userId types.UUID) {
	h.Profile.ReplaceSettings(c, userId)
}

// Medication endpoints
func (h *APIHandler) ListMedications(c *gin.Context, userId types.UUID) {
	h.Medication.ListMedications(c, userId)
}

func (h *APIHandler) AddMedication(c *gin.Context, userId types.UUID) {
	h.Medication.AddMedication(c, userId)
}

func (h *APIHandler) DeleteMedication(c *gin.Context, userId types.UUID, medicationId types.UUID) {
	h.Medication.DeleteMedication(c, userId, medicationId)
}

func (h *APIHandler) MarkTaken(c *gin.Context, userId types.UUID, medicationId types.UUID) {
	h.Medication.MarkTaken(c, userId, medicationId)
}

func (h *APIHandler) Sweep(c *gin.Context, userId types.UUID) {
	h.Medication.Sweep(c, userId)
}

// Vital endpoints
func (h *APIHandler) ListVitals(c *gin.Context, userId types.UUID) {
	h.Health.ListVitals(c, userId)
}

func (h *APIHandler) LogVital(c *gin.Context, userId types.UUID) {
	h.Health.LogVital(c, userId)
}

// Dashboard endpoints
func (h *APIHandler) GetHistory(c *gin.Context, userId types.UUID, params api.GetHistoryParams) {
	h.Dashboard.GetHistory(c, userId, params)
}

func (h *APIHandler) GetNotifications(c *gin.Context, userId types.UUID, params api.GetNotificationsParams) {
	h.Dashboard.GetNotifications(c, userId, params)
}

func (h *APIHandler) AcknowledgeNotification(c *gin.Context, userId types.UUID, notificationId types.UUID) {
	h.Dashboard.AcknowledgeNotification(c, userId, notificationId)
}

func (h *APIHandler) GetAdherence(c *gin.Context, userId types.UUID) {
	h.Dashboard.GetAdherence(c, userId)
}

func (h *APIHandler) ListRewards(c *gin.Context) { h.Dashboard.ListRewards(c) }

func (h *APIHandler) PurchaseReward(c *gin.Context, userId types.UUID, rewardId int) {
	h.Dashboard.PurchaseReward(c, userId, rewardId)
}

// Report endpoints
func (h *APIHandler) GenerateReport(c *gin.Context, userId types.UUID) {
	h.Report.GenerateReport(c, userId)
}

func (h *APIHandler) DownloadReport(c *gin.Context, userId types.UUID, month string) {
	h.Report.DownloadReport(c, userId, month)
}

// GetHealth implements the health check endpoint
func (h *APIHandler) GetHealth(c *gin.Context) {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request.Context()); err != nil {
			h.Logger.Error("health check failed: database unreachable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
		"service":  "arogyasahay-backend",
	})
}
