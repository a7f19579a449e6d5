package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// ProfileHandler implements profile and session endpoints
type ProfileHandler struct {
	service *service.AdherenceService
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(service *service.AdherenceService, recorder audit.Recorder, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		audit:   recorder,
		logger:  logger,
	}
}

// CreateProfile registers a new user
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req api.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, "Invalid request body", err)
		return
	}

	profile, err := h.service.CreateProfile(c.Request.Context(), req.Username, toConditions(req.Conditions))
	if err != nil {
		writeError(c, h.logger, err, "Failed to create profile")
		return
	}
	recordAudit(c, h.audit, h.logger, profile.UserID, audit.OperationCreate, audit.ResourceProfile, profile.UserID)

	c.JSON(http.StatusCreated, profile)
}

// UnlockProfile opens a session and starts the missed-dose sweeper
func (h *ProfileHandler) UnlockProfile(c *gin.Context, userId types.UUID) {
	userID := uuidToString(userId)
	profile, err := h.service.Unlock(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err, "Failed to unlock profile")
		return
	}
	recordAudit(c, h.audit, h.logger, userID, audit.OperationUnlock, audit.ResourceSession, "")
	c.JSON(http.StatusOK, profile)
}

// LockProfile stops the sweeper and persists the profile
func (h *ProfileHandler) LockProfile(c *gin.Context, userId types.UUID) {
	userID := uuidToString(userId)
	if err := h.service.Lock(c.Request.Context(), userID); err != nil {
		writeError(c, h.logger, err, "Failed to lock profile")
		return
	}
	recordAudit(c, h.audit, h.logger, userID, audit.OperationLock, audit.ResourceSession, "")
	c.Status(http.StatusNoContent)
}

// GetProfile returns the full profile snapshot
func (h *ProfileHandler) GetProfile(c *gin.Context, userId types.UUID) {
	profile, err := h.service.Profile(c.Request.Context(), uuidToString(userId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SetConditions replaces the declared chronic conditions
func (h *ProfileHandler) SetConditions(c *gin.Context, userId types.UUID) {
	var req api.SetConditionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	profile, err := h.service.SetConditions(c.Request.Context(), uuidToString(userId), toConditions(req.Conditions))
	if err != nil {
		writeError(c, h.logger, err, "Failed to set conditions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conditions": profile.Conditions})
}

// ReplaceSettings stores the presentation settings
func (h *ProfileHandler) ReplaceSettings(c *gin.Context, userId types.UUID) {
	var req model.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	settings, err := h.service.ReplaceSettings(c.Request.Context(), uuidToString(userId), req)
	if err != nil {
		writeError(c, h.logger, err, "Failed to replace settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}
