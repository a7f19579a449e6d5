package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"go.uber.org/zap"
)

// MedicationHandler implements medication and dose endpoints
type MedicationHandler struct {
	service *service.AdherenceService
	audit   audit.Recorder
	logger  *zap.Logger
}

// NewMedicationHandler creates a new MedicationHandler
func NewMedicationHandler(service *service.AdherenceService, recorder audit.Recorder, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		service: service,
		audit:   recorder,
		logger:  logger,
	}
}

// AddMedication adds a new dose-slot
func (h *MedicationHandler) AddMedication(c *gin.Context, userId types.UUID) {
	var req api.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		badRequest(c, "Invalid request body", err)
		return
	}

	spec := engine.MedicationSpec{
		Name:      req.Name,
		Dosage:    req.Dosage,
		Time:      strings.TrimSpace(req.Time),
		Count:     req.Count,
		Chronic:   req.Chronic,
		StartDate: datePtrToTime(req.StartDate),
		EndDate:   datePtrToTime(req.EndDate),
	}
	if req.Description != nil {
		spec.Description = *req.Description
	}
	if req.Frequency != nil {
		spec.Frequency = *req.Frequency
	}

	userID := uuidToString(userId)
	med, err := h.service.AddMedication(c.Request.Context(), userID, spec)
	if err != nil {
		writeError(c, h.logger, err, "Failed to add medication")
		return
	}

	h.logger.Info("medication added",
		zap.String("medication_id", med.ID),
		zap.String("user_id", userID),
	)

	c.JSON(http.StatusCreated, toMedicationResponse(med))
}

// ListMedications lists all medications with their current visibility window
func (h *MedicationHandler) ListMedications(c *gin.Context, userId types.UUID) {
	views, err := h.service.Medications(c.Request.Context(), uuidToString(userId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to list medications")
		return
	}

	response := make([]api.MedicationResponse, 0, len(views))
	for _, view := range views {
		r := toMedicationResponse(view.Medication)
		r.Window = stringPtr(string(view.Window))
		r.OpensAt = view.Opens
		r.ClosesAt = view.Closes
		response = append(response, r)
	}

	c.JSON(http.StatusOK, response)
}

// DeleteMedication removes a medication. Deleting an unknown id succeeds.
func (h *MedicationHandler) DeleteMedication(c *gin.Context, userId types.UUID, medicationId types.UUID) {
	userID := uuidToString(userId)
	removed, err := h.service.DeleteMedication(c.Request.Context(), userID, uuidToString(medicationId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to delete medication")
		return
	}

	if removed {
		h.logger.Info("medication deleted",
			zap.String("medication_id", uuidToString(medicationId)),
			zap.String("user_id", userID),
		)
		recordAudit(c, h.audit, h.logger, userID, audit.OperationDelete, audit.ResourceMedication, uuidToString(medicationId))
	}
	c.Status(http.StatusNoContent)
}

// MarkTaken confirms a dose
func (h *MedicationHandler) MarkTaken(c *gin.Context, userId types.UUID, medicationId types.UUID) {
	med, err := h.service.MarkTaken(c.Request.Context(), uuidToString(userId), uuidToString(medicationId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to mark dose as taken")
		return
	}
	c.JSON(http.StatusOK, toMedicationResponse(med))
}

// Sweep runs one missed-dose sweep immediately
func (h *MedicationHandler) Sweep(c *gin.Context, userId types.UUID) {
	missed, err := h.service.SweepNow(c.Request.Context(), uuidToString(userId))
	if err != nil {
		writeError(c, h.logger, err, "Failed to sweep missed doses")
		return
	}

	response := make([]api.MedicationResponse, 0, len(missed))
	for _, med := range missed {
		response = append(response, toMedicationResponse(med))
	}
	c.JSON(http.StatusOK, gin.H{"missed": response})
}
