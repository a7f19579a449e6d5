package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/repository"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// Helper functions for type conversions between API types and internal models

// stringPtr creates a pointer to a string
func stringPtr(s string) *string {
	return &s
}

// optionalString returns nil for an empty string
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// uuidToString converts types.UUID to string
func uuidToString(u types.UUID) string {
	return uuid.UUID(u).String()
}

// stringToUUID converts an id to types.UUID, uuid.Nil when it is not a UUID
func stringToUUID(s string) types.UUID {
	u, err := uuid.Parse(s)
	if err != nil {
		return types.UUID(uuid.Nil)
	}
	return types.UUID(u)
}

// datePtrToTime converts *types.Date to *time.Time
func datePtrToTime(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// timePtrToDate converts *time.Time to *types.Date
func timePtrToDate(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return &types.Date{Time: *t}
}

func toConditions(values []string) []model.ChronicCondition {
	conditions := make([]model.ChronicCondition, 0, len(values))
	for _, v := range values {
		conditions = append(conditions, model.ChronicCondition(v))
	}
	return conditions
}

func toMedicationResponse(med model.Medication) api.MedicationResponse {
	return api.MedicationResponse{
		Id:          stringToUUID(med.ID),
		Name:        med.Name,
		Dosage:      med.Dosage,
		Description: optionalString(med.Description),
		Time:        med.Time,
		Frequency:   med.Frequency,
		Count:       med.Count,
		Chronic:     med.Chronic,
		StartDate:   timePtrToDate(med.StartDate),
		EndDate:     timePtrToDate(med.EndDate),
		Status:      string(med.Status()),
		TakenTime:   med.TakenTime,
		CreatedAt:   med.CreatedAt,
	}
}

func toVitalResponse(v model.VitalReading) api.VitalResponse {
	return api.VitalResponse{
		Id:        stringToUUID(v.ID),
		Date:      types.Date{Time: v.Date},
		Systolic:  v.Systolic,
		Diastolic: v.Diastolic,
		Glucose:   v.Glucose,
		TSH:       v.TSH,
		CreatedAt: v.CreatedAt,
	}
}

// recordAudit stores an access audit entry. A failed write is logged and
// never fails the request.
func recordAudit(c *gin.Context, recorder audit.Recorder, logger *zap.Logger, userID string, op audit.OperationType, resource audit.ResourceType, resourceID string) {
	if recorder == nil {
		return
	}
	err := recorder.Record(c.Request.Context(), audit.Entry{
		UserID:        userID,
		OperationType: op,
		ResourceType:  resource,
		ResourceID:    resourceID,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		logger.Warn("failed to record audit entry",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("operation", string(op)),
		)
	}
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: stringPtr(err.Error()),
	})
}

// writeError maps service and engine errors onto the standard error body
func writeError(c *gin.Context, logger *zap.Logger, err error, message string) {
	var (
		validation *engine.ValidationError
		notFound   *engine.NotFoundError
		state      *engine.InvalidStateError
		funds      *engine.InsufficientFundsError
	)

	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	details := err.Error()

	switch {
	case errors.As(err, &validation):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
		fields := make([]string, 0, len(validation.Fields))
		for _, f := range validation.Fields {
			fields = append(fields, f.Field+": "+f.Message)
		}
		details = strings.Join(fields, "; ")
	case errors.As(err, &notFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, repository.ErrProfileNotFound):
		status, code = http.StatusNotFound, "PROFILE_NOT_FOUND"
	case errors.As(err, &state):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.As(err, &funds):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"
	case errors.Is(err, service.ErrSessionLocked):
		status, code = http.StatusLocked, "SESSION_LOCKED"
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error(message,
			zap.Error(err),
			zap.String("user_id", c.Param("user_id")),
		)
	}

	c.JSON(status, api.ErrorResponse{
		Code:    code,
		Message: message,
		Details: stringPtr(details),
	})
}
