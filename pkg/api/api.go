// Package api holds the HTTP contract of the adherence backend: request and
// response bodies, the server interface and its gin route registration.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// CreateProfileRequest defines model for CreateProfileRequest.
type CreateProfileRequest struct {
	Username   string   `json:"username"`
	Conditions []string `json:"conditions,omitempty"`
}

// SetConditionsRequest defines model for SetConditionsRequest.
type SetConditionsRequest struct {
	Conditions []string `json:"conditions"`
}

// CreateMedicationRequest defines model for CreateMedicationRequest.
type CreateMedicationRequest struct {
	Name        string              `json:"name"`
	Dosage      string              `json:"dosage"`
	Description *string             `json:"description,omitempty"`
	Time        string              `json:"time"`
	Frequency   *string             `json:"frequency,omitempty"`
	Count       int                 `json:"count"`
	Chronic     bool                `json:"chronic"`
	StartDate   *openapi_types.Date `json:"start_date,omitempty"`
	EndDate     *openapi_types.Date `json:"end_date,omitempty"`
}

// LogVitalRequest defines model for LogVitalRequest.
type LogVitalRequest struct {
	Date      *openapi_types.Date `json:"date,omitempty"`
	Systolic  *int                `json:"systolic,omitempty"`
	Diastolic *int                `json:"diastolic,omitempty"`
	Glucose   *int                `json:"glucose,omitempty"`
	TSH       *float64            `json:"tsh,omitempty"`
}

// GenerateReportRequest defines model for GenerateReportRequest.
type GenerateReportRequest struct {
	// Month is formatted as yyyy-mm; empty selects the current month
	Month *string `json:"month,omitempty"`
}

// MedicationResponse defines model for MedicationResponse.
type MedicationResponse struct {
	Id          openapi_types.UUID  `json:"id"`
	Name        string              `json:"name"`
	Dosage      string              `json:"dosage"`
	Description *string             `json:"description,omitempty"`
	Time        string              `json:"time"`
	Frequency   string              `json:"frequency"`
	Count       int                 `json:"count"`
	Chronic     bool                `json:"chronic"`
	StartDate   *openapi_types.Date `json:"start_date,omitempty"`
	EndDate     *openapi_types.Date `json:"end_date,omitempty"`
	Status      string              `json:"status"`
	Window      *string             `json:"window,omitempty"`
	OpensAt     *time.Time          `json:"opens_at,omitempty"`
	ClosesAt    *time.Time          `json:"closes_at,omitempty"`
	TakenTime   *time.Time          `json:"taken_time,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// VitalResponse defines model for VitalResponse.
type VitalResponse struct {
	Id        openapi_types.UUID `json:"id"`
	Date      openapi_types.Date `json:"date"`
	Systolic  *int               `json:"systolic,omitempty"`
	Diastolic *int               `json:"diastolic,omitempty"`
	Glucose   *int               `json:"glucose,omitempty"`
	TSH       *float64           `json:"tsh,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// PurchaseResponse defines model for PurchaseResponse.
type PurchaseResponse struct {
	RewardId int     `json:"reward_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Coins    float64 `json:"coins"`
}

// GetHistoryParams defines parameters for GetHistory.
type GetHistoryParams struct {
	Category *string `form:"category,omitempty" json:"category,omitempty"`
}

// GetNotificationsParams defines parameters for GetNotifications.
type GetNotificationsParams struct {
	Unread *bool `form:"unread,omitempty" json:"unread,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /api/v1/profiles)
	CreateProfile(c *gin.Context)
	// (GET /api/v1/profiles/{user_id})
	GetProfile(c *gin.Context, userId openapi_types.UUID)
	// (POST /api/v1/profiles/{user_id}/session)
	UnlockProfile(c *gin.Context, userId openapi_types.UUID)
	// (DELETE /api/v1/profiles/{user_id}/session)
	LockProfile(c *gin.Context, userId openapi_types.UUID)
	// (PUT /api/v1/profiles/{user_id}/conditions)
	SetConditions(c *gin.Context, userId openapi_types.UUID)
	// (PUT /api/v1/profiles/{user_id}/settings)
	ReplaceSettings(c *gin.Context, userId openapi_types.UUID)
	// (GET /api/v1/profiles/{user_id}/medications)
	ListMedications(c *gin.Context, userId openapi_types.UUID)
	// (POST /api/v1/profiles/{user_id}/medications)
	AddMedication(c *gin.Context, userId openapi_types.UUID)
	// (DELETE /api/v1/profiles/{user_id}/medications/{medication_id})
	DeleteMedication(c *gin.Context, userId openapi_types.UUID, medicationId openapi_types.UUID)
	// (POST /api/v1/profiles/{user_id}/medications/{medication_id}/take)
	MarkTaken(c *gin.Context, userId openapi_types.UUID, medicationId openapi_types.UUID)
	// (POST /api/v1/profiles/{user_id}/sweep)
	Sweep(c *gin.Context, userId openapi_types.UUID)
	// (GET /api/v1/profiles/{user_id}/vitals)
	ListVitals(c *gin.Context, userId openapi_types.UUID)
	// (POST /api/v1/profiles/{user_id}/vitals)
	LogVital(c *gin.Context, userId openapi_types.UUID)
	// (GET /api/v1/profiles/{user_id}/history)
	GetHistory(c *gin.Context, userId openapi_types.UUID, params GetHistoryParams)
	// (GET /api/v1/profiles/{user_id}/notifications)
	GetNotifications(c *gin.Context, userId openapi_types.UUID, params GetNotificationsParams)
	// (PUT /api/v1/profiles/{user_id}/notifications/{notification_id}/read)
	AcknowledgeNotification(c *gin.Context, userId openapi_types.UUID, notificationId openapi_types.UUID)
	// (GET /api/v1/profiles/{user_id}/adherence)
	GetAdherence(c *gin.Context, userId openapi_types.UUID)
	// (GET /api/v1/rewards)
	ListRewards(c *gin.Context)
	// (POST /api/v1/profiles/{user_id}/rewards/{reward_id}/purchase)
	PurchaseReward(c *gin.Context, userId openapi_types.UUID, rewardId int)
	// (POST /api/v1/profiles/{user_id}/reports)
	GenerateReport(c *gin.Context, userId openapi_types.UUID)
	// (GET /api/v1/profiles/{user_id}/reports/{month})
	DownloadReport(c *gin.Context, userId openapi_types.UUID, month string)
	// (GET /health)
	GetHealth(c *gin.Context)
}

// ServerInterfaceWrapper converts path and query parameters before calling
// the handler.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func pathParam(c *gin.Context, name string, dest interface{}) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		details := err.Error()
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("Invalid format for parameter %s", name),
			Details: &details,
		})
		return false
	}
	return true
}

func queryParam(c *gin.Context, name string, dest interface{}) bool {
	err := runtime.BindQueryParameter("form", true, false, name, c.Request.URL.Query(), dest)
	if err != nil {
		details := err.Error()
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: fmt.Sprintf("Invalid format for parameter %s", name),
			Details: &details,
		})
		return false
	}
	return true
}

func (w *ServerInterfaceWrapper) withUser(c *gin.Context) (openapi_types.UUID, bool) {
	var userId openapi_types.UUID
	ok := pathParam(c, "user_id", &userId)
	return userId, ok
}

func (w *ServerInterfaceWrapper) CreateProfile(c *gin.Context) { w.Handler.CreateProfile(c) }

func (w *ServerInterfaceWrapper) GetProfile(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.GetProfile(c, userId)
	}
}

func (w *ServerInterfaceWrapper) UnlockProfile(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.UnlockProfile(c, userId)
	}
}

func (w *ServerInterfaceWrapper) LockProfile(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.LockProfile(c, userId)
	}
}

func (w *ServerInterfaceWrapper) SetConditions(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.SetConditions(c, userId)
	}
}

func (w *ServerInterfaceWrapper) ReplaceSettings(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.ReplaceSettings(c, userId)
	}
}

func (w *ServerInterfaceWrapper) ListMedications(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.ListMedications(c, userId)
	}
}

func (w *ServerInterfaceWrapper) AddMedication(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.AddMedication(c, userId)
	}
}

func (w *ServerInterfaceWrapper) DeleteMedication(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var medicationId openapi_types.UUID
	if pathParam(c, "medication_id", &medicationId) {
		w.Handler.DeleteMedication(c, userId, medicationId)
	}
}

func (w *ServerInterfaceWrapper) MarkTaken(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var medicationId openapi_types.UUID
	if pathParam(c, "medication_id", &medicationId) {
		w.Handler.MarkTaken(c, userId, medicationId)
	}
}

func (w *ServerInterfaceWrapper) Sweep(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.Sweep(c, userId)
	}
}

func (w *ServerInterfaceWrapper) ListVitals(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.ListVitals(c, userId)
	}
}

func (w *ServerInterfaceWrapper) LogVital(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.LogVital(c, userId)
	}
}

func (w *ServerInterfaceWrapper) GetHistory(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var params GetHistoryParams
	if queryParam(c, "category", &params.Category) {
		w.Handler.GetHistory(c, userId, params)
	}
}

func (w *ServerInterfaceWrapper) GetNotifications(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var params GetNotificationsParams
	if queryParam(c, "unread", &params.Unread) {
		w.Handler.GetNotifications(c, userId, params)
	}
}

func (w *ServerInterfaceWrapper) AcknowledgeNotification(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var notificationId openapi_types.UUID
	if pathParam(c, "notification_id", &notificationId) {
		w.Handler.AcknowledgeNotification(c, userId, notificationId)
	}
}

func (w *ServerInterfaceWrapper) GetAdherence(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.GetAdherence(c, userId)
	}
}

func (w *ServerInterfaceWrapper) ListRewards(c *gin.Context) { w.Handler.ListRewards(c) }

func (w *ServerInterfaceWrapper) PurchaseReward(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var rewardId int
	if pathParam(c, "reward_id", &rewardId) {
		w.Handler.PurchaseReward(c, userId, rewardId)
	}
}

func (w *ServerInterfaceWrapper) GenerateReport(c *gin.Context) {
	if userId, ok := w.withUser(c); ok {
		w.Handler.GenerateReport(c, userId)
	}
}

func (w *ServerInterfaceWrapper) DownloadReport(c *gin.Context) {
	userId, ok := w.withUser(c)
	if !ok {
		return
	}
	var month string
	if pathParam(c, "month", &month) {
		w.Handler.DownloadReport(c, userId, month)
	}
}

func (w *ServerInterfaceWrapper) GetHealth(c *gin.Context) { w.Handler.GetHealth(c) }

// RegisterHandlers adds each server route to the router.
func RegisterHandlers(router gin.IRouter, si ServerInterface) {
	w := &ServerInterfaceWrapper{Handler: si}

	router.GET("/health", w.GetHealth)

	v1 := router.Group("/api/v1")
	v1.GET("/rewards", w.ListRewards)
	v1.POST("/profiles", w.CreateProfile)

	p := v1.Group("/profiles/:user_id")
	p.GET("", w.GetProfile)
	p.POST("/session", w.UnlockProfile)
	p.DELETE("/session", w.LockProfile)
	p.PUT("/conditions", w.SetConditions)
	p.PUT("/settings", w.ReplaceSettings)
	p.GET("/medications", w.ListMedications)
	p.POST("/medications", w.AddMedication)
	p.DELETE("/medications/:medication_id", w.DeleteMedication)
	p.POST("/medications/:medication_id/take", w.MarkTaken)
	p.POST("/sweep", w.Sweep)
	p.GET("/vitals", w.ListVitals)
	p.POST("/vitals", w.LogVital)
	p.GET("/history", w.GetHistory)
	p.GET("/notifications", w.GetNotifications)
	p.PUT("/notifications/:notification_id/read", w.AcknowledgeNotification)
	p.GET("/adherence", w.GetAdherence)
	p.POST("/rewards/:reward_id/purchase", w.PurchaseReward)
	p.POST("/reports", w.GenerateReport)
	p.GET("/reports/:month", w.DownloadReport)
}
