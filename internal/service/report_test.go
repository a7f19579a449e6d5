package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/azure"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/metrics"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/pdf"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// MockProfileSource is a mock implementation of ProfileSource
type MockProfileSource struct {
	mock.Mock
}

func (m *MockProfileSource) Profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockProfileSource) Summary(ctx context.Context, userID string) (engine.Summary, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(engine.Summary), args.Error(1)
}

type failingStorage struct{}

func (failingStorage) UploadReport(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("storage unavailable")
}

func (failingStorage) DownloadReport(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2026, time.March, 17, 15, 4, 0, 0, time.UTC)

	month, err := ParseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), month)

	month, err = ParseMonth("2025-12", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), month)

	_, err = ParseMonth("March 2026", now)
	var verr *engine.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestHistoryInMonth(t *testing.T) {
	history := []model.HistoryItem{
		{ID: "april", Timestamp: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "late", Timestamp: time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)},
		{ID: "early", Timestamp: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "february", Timestamp: time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC)},
	}

	got := historyInMonth(history, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	require.Len(t, got, 2)
	assert.Equal(t, "late", got[0].ID)
	assert.Equal(t, "early", got[1].ID)
}

func TestReportService_GenerateMonthlyReport(t *testing.T) {
	source := new(MockProfileSource)
	storage := azure.NewMockBlobStorageClient(zap.NewNop())
	clock := &testClock{now: time.Date(2026, time.March, 31, 20, 0, 0, 0, time.UTC)}
	svc := NewReportService(source, storage, pdf.NewPDFGenerator(zap.NewNop()), clock, metrics.New(), zap.NewNop())
	ctx := context.Background()

	profile := storedProfile(chronicDose("m1", "09:00", 20))
	profile.Conditions = []model.ChronicCondition{model.ConditionDiabetes}
	profile.History = []model.HistoryItem{
		{ID: "h1", Category: model.HistoryMedication, Title: "Medication Taken", Value: "+10", Timestamp: clock.now.Add(-time.Hour)},
	}
	source.On("Profile", ctx, "user-1").Return(profile, nil)
	source.On("Summary", ctx, "user-1").Return(engine.Summary{Total: 1, Pending: 1, AdherenceRate: 0, Coins: 100}, nil)

	month := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.GenerateMonthlyReport(ctx, "user-1", month)
	require.NoError(t, err)

	assert.Equal(t, "2026-03", report.Month)
	assert.Equal(t, "reports/user-1/2026-03.pdf", report.BlobName)
	assert.Equal(t, clock.now, report.GeneratedAt)
	assert.Positive(t, report.SizeBytes)

	data, err := svc.DownloadReport(ctx, "user-1", month)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Len(t, data, report.SizeBytes)

	source.AssertExpectations(t)
}

func TestReportService_LockedProfile(t *testing.T) {
	source := new(MockProfileSource)
	svc := NewReportService(source, azure.NewMockBlobStorageClient(zap.NewNop()), pdf.NewPDFGenerator(zap.NewNop()), nil, metrics.New(), zap.NewNop())
	ctx := context.Background()

	source.On("Profile", ctx, "user-1").Return(nil, ErrSessionLocked)

	_, err := svc.GenerateMonthlyReport(ctx, "user-1", time.Now())
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestReportService_UploadFailure(t *testing.T) {
	source := new(MockProfileSource)
	svc := NewReportService(source, failingStorage{}, pdf.NewPDFGenerator(zap.NewNop()), nil, metrics.New(), zap.NewNop())
	ctx := context.Background()

	source.On("Profile", ctx, "user-1").Return(storedProfile(), nil)
	source.On("Summary", ctx, "user-1").Return(engine.Summary{AdherenceRate: 100, Coins: 100}, nil)

	_, err := svc.GenerateMonthlyReport(ctx, "user-1", time.Now())
	assert.ErrorContains(t, err, "failed to upload report")
}

func TestReportService_DownloadMissingReport(t *testing.T) {
	svc := NewReportService(new(MockProfileSource), azure.NewMockBlobStorageClient(zap.NewNop()), pdf.NewPDFGenerator(zap.NewNop()), nil, metrics.New(), zap.NewNop())

	_, err := svc.DownloadReport(context.Background(), "user-1", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	var notFound *engine.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "2020-01", notFound.ID)
}

func TestReportService_DownloadStorageFailure(t *testing.T) {
	svc := NewReportService(new(MockProfileSource), failingStorage{}, pdf.NewPDFGenerator(zap.NewNop()), nil, metrics.New(), zap.NewNop())

	_, err := svc.DownloadReport(context.Background(), "user-1", time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC))

	var notFound *engine.NotFoundError
	assert.False(t, errors.As(err, &notFound), "a storage outage is not a missing report")
	assert.ErrorContains(t, err, "failed to download report")
}
