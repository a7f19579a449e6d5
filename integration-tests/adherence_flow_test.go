package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/audit"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/azure"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/handler"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/metrics"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/pdf"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/repository"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/service"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/api"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type alertRecorder struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (r *alertRecorder) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *alertRecorder) kinds() []alert.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]alert.Kind, 0, len(r.alerts))
	for _, a := range r.alerts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func setupTestDatabase(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("arogyasahay_integration"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, connString, zap.NewNop()))

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

func request(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestAdherenceFlowIntegration drives a profile through two sessions against
// PostgreSQL: doses taken in the first session survive the lock, and a dose
// whose window closed while locked is swept on the next unlock.
func TestAdherenceFlowIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := zap.NewNop()

	db, cleanup := setupTestDatabase(t, ctx)
	defer cleanup()

	clock := &steppingClock{now: time.Date(2026, time.March, 10, 8, 40, 0, 0, time.UTC)}
	recorder := &alertRecorder{}
	dispatcher := alert.NewDispatcher(16, time.Second, logger, recorder)
	go dispatcher.Run()

	m := metrics.New()
	profileRepo := repository.NewProfileRepository(db, logger)
	auditLogger := audit.NewLogger(db, logger)

	adherence := service.NewAdherenceService(profileRepo, clock, dispatcher, m, logger, service.AdherenceOptions{SweepInterval: time.Hour})
	reports := service.NewReportService(adherence, azure.NewMockBlobStorageClient(logger), pdf.NewPDFGenerator(logger), clock, m, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.RegisterHandlers(router, &handler.APIHandler{
		Profile:    handler.NewProfileHandler(adherence, auditLogger, logger),
		Medication: handler.NewMedicationHandler(adherence, auditLogger, logger),
		Health:     handler.NewHealthHandler(adherence, logger),
		Dashboard:  handler.NewDashboardHandler(adherence, auditLogger, logger),
		Report:     handler.NewReportHandler(reports, auditLogger, logger),
		DB:         profileRepo,
		Logger:     logger,
	})

	w := request(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = request(t, router, http.MethodPost, "/api/v1/profiles", api.CreateProfileRequest{
		Username:   "ravi",
		Conditions: []string{"BP"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var profile model.UserProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	base := "/api/v1/profiles/" + profile.UserID

	t.Run("First session", func(t *testing.T) {
		w := request(t, router, http.MethodPost, base+"/session", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = request(t, router, http.MethodPost, base+"/medications", api.CreateMedicationRequest{
			Name: "Telmisartan", Dosage: "40mg", Time: "09:00", Count: 10, Chronic: true,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var morning api.MedicationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &morning))

		w = request(t, router, http.MethodPost, base+"/medications", api.CreateMedicationRequest{
			Name: "Amlodipine", Dosage: "5mg", Time: "12:00", Count: 30, Chronic: true,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = request(t, router, http.MethodPost, base+"/medications/"+morning.Id.String()+"/take", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		systolic, diastolic := 131, 86
		w = request(t, router, http.MethodPost, base+"/vitals", api.LogVitalRequest{Systolic: &systolic, Diastolic: &diastolic})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = request(t, router, http.MethodDelete, base+"/session", nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		stored, err := profileRepo.Load(ctx, profile.UserID)
		require.NoError(t, err)
		assert.Equal(t, 110.0, stored.Ledger.Coins)
		assert.Equal(t, 1, stored.Ledger.Streak)
		assert.Len(t, stored.Medications, 2)
		assert.Len(t, stored.Vitals, 1)
		assert.Len(t, stored.History, 2)
	})

	t.Run("Second session sweeps the closed window", func(t *testing.T) {
		clock.Set(time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC))

		w := request(t, router, http.MethodPost, base+"/session", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = request(t, router, http.MethodGet, base+"/adherence", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var summary engine.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 109.5, summary.Coins)
		assert.Equal(t, 1, summary.Taken)
		assert.Equal(t, 1, summary.Missed)
		assert.Equal(t, 1, summary.LowStock)
		assert.Equal(t, 50.0, summary.AdherenceRate)

		stored, err := profileRepo.Load(ctx, profile.UserID)
		require.NoError(t, err)
		assert.Equal(t, 109.5, stored.Ledger.Coins, "the sweep result is persisted without waiting for lock")

		w = request(t, router, http.MethodPost, base+"/reports", api.GenerateReportRequest{})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = request(t, router, http.MethodDelete, base+"/session", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Alerts and audit trail", func(t *testing.T) {
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, dispatcher.Close(closeCtx))

		assert.ElementsMatch(t, []alert.Kind{alert.KindLowStock, alert.KindMissedDose}, recorder.kinds())

		entries, err := auditLogger.Recent(ctx, profile.UserID, 20)
		require.NoError(t, err)
		operations := make([]audit.OperationType, 0, len(entries))
		for _, e := range entries {
			operations = append(operations, e.OperationType)
		}
		assert.Equal(t, []audit.OperationType{
			audit.OperationLock,
			audit.OperationExport,
			audit.OperationUnlock,
			audit.OperationLock,
			audit.OperationUnlock,
			audit.OperationCreate,
		}, operations)
	})

	require.NoError(t, adherence.Shutdown(ctx))
}
