package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// DashboardHandler implements the adherence overview, history, notification
// and rewards endpoints
type DashboardHandler struct {
	service *service.AdherenceService
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service *service.AdherenceService, recorder audit.Recorder, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		audit:   recorder,
		logger:  logger,
	}
}

// GetAdherence returns the adherence summary
func (h *DashboardHandler) GetAdherence(c *gin.Context, userId types.UUID) {
	summary, err := h.service.Summary(c.Request.Context(), uuidToString(userId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to get adherence summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetHistory returns audit records, optionally filtered by category
func (h *DashboardHandler) GetHistory(c *gin.Context, userId types.UUID, params api.GetHistoryParams) {
	var category model.HistoryCategory
	if params.Category != nil {
		category = model.HistoryCategory(*params.Category)
		switch category {
		case model.HistoryMedication, model.HistoryPurchase, model.HistoryVital:
		default:
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid history category",
				Details: stringPtr("category must be one of medication, purchase, vital"),
			})
			return
		}
	}

	history, err := h.service.History(c.Request.Context(), uuidToString(userId), category)
	if err != nil {
		writeError(c, h.logger, err, "Failed to get history")
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetNotifications returns notifications, newest first
func (h *DashboardHandler) GetNotifications(c *gin.Context, userId types.UUID, params api.GetNotificationsParams) {
	unreadOnly := params.Unread != nil && *params.Unread

	notifications, err := h.service.Notifications(c.Request.Context(), uuidToString(userId), unreadOnly)
	if err != nil {
		writeError(c, h.logger, err, "Failed to get notifications")
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// AcknowledgeNotification marks a notification as read
func (h *DashboardHandler) AcknowledgeNotification(c *gin.Context, userId types.UUID, notificationId types.UUID) {
	err := h.service.AcknowledgeNotification(c.Request.Context(), uuidToString(userId), uuidToString(notificationId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to acknowledge notification")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRewards returns the rewards catalog
func (h *DashboardHandler) ListRewards(c *gin.Context) {
	c.JSON(http.StatusOK, model.RewardCatalog)
}

// PurchaseReward redeems a catalog reward with coins
func (h *DashboardHandler) PurchaseReward(c *gin.Context, userId types.UUID, rewardId int) {
	userID := uuidToString(userId)
	reward, err := h.service.Purchase(c.Request.Context(), userID, rewardId)
	if err != nil {
		writeError(c, h.logger, err, "Failed to purchase reward")
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err, "Failed to purchase reward")
		return
	}

	recordAudit(c, h.audit, h.logger, userID, audit.OperationPurchase, audit.ResourceReward, strconv.Itoa(reward.ID))

	h.logger.Info("reward purchased",
		zap.Int("reward_id", reward.ID),
		zap.String("user_id", userID),
		zap.Float64("coins", summary.Coins),
	)

	c.JSON(http.StatusOK, api.PurchaseResponse{
		RewardId: reward.ID,
		Name:     reward.Name,
		Price:    reward.Price,
		Coins:    summary.Coins,
	})
}
