package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/azure"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/metrics"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/pdf"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// MonthLayout is the format of report months
const MonthLayout = "2006-01"

// ProfileSource provides the state rendered into a report
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (*model.UserProfile, error)
	Summary(ctx context.Context, userID string) (engine.Summary, error)
}

// Report describes a generated and stored monthly report
type Report struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Month       string    `json:"month"`
	BlobName    string    `json:"blob_name"`
	SizeBytes   int       `json:"size_bytes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportService manages monthly clinical report generation
type ReportService struct {
	profiles ProfileSource
	storage  azure.ReportStorage
	pdfGen   *pdf.PDFGenerator
	clock    engine.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	profiles ProfileSource,
	storage azure.ReportStorage,
	pdfGen *pdf.PDFGenerator,
	clock engine.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReportService {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &ReportService{
		profiles: profiles,
		storage:  storage,
		pdfGen:   pdfGen,
		clock:    clock,
		metrics:  m,
		logger:   logger,
	}
}

// Now returns the service clock's current instant
func (s *ReportService) Now() time.Time {
	return s.clock.Now()
}

// ParseMonth parses a yyyy-mm month. An empty string selects the month of now.
func ParseMonth(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	month, err := time.ParseInLocation(MonthLayout, value, now.Location())
	if err != nil {
		return time.Time{}, &engine.ValidationError{Fields: []engine.FieldError{{Field: "month", Message: "must be formatted as yyyy-mm"}}}
	}
	return month, nil
}

// GenerateMonthlyReport renders the report for month and uploads it. The
// activity log only carries history items recorded inside that month.
func (s *ReportService) GenerateMonthlyReport(ctx context.Context, userID string, month time.Time) (*Report, error) {
	s.logger.Info("generating monthly report",
		zap.String("user_id", userID),
		zap.String("month", month.Format(MonthLayout)),
	)

	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.profiles.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	data := &pdf.ReportData{
		UserName:    profile.Username,
		Conditions:  profile.Conditions,
		Month:       month,
		GeneratedAt: now,
		Adherence: pdf.AdherenceFigures{
			Coins:         summary.Coins,
			Streak:        summary.Streak,
			Taken:         summary.Taken,
			Missed:        summary.Missed,
			Pending:       summary.Pending,
			AdherenceRate: summary.AdherenceRate,
		},
		Medications: profile.Medications,
		Vitals:      profile.Vitals,
		History:     historyInMonth(profile.History, month),
	}

	pdfBytes, err := s.pdfGen.Generate(data)
	if err != nil {
		s.metrics.Report("error")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	blobName, err := s.storage.UploadReport(ctx, userID, month.Format(MonthLayout)+".pdf", pdfBytes)
	if err != nil {
		s.metrics.Report("error")
		s.logger.Error("failed to upload report",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}
	s.metrics.Report("success")

	report := &Report{
		ID:          uuid.NewString(),
		UserID:      userID,
		Month:       month.Format(MonthLayout),
		BlobName:    blobName,
		SizeBytes:   len(pdfBytes),
		GeneratedAt: now,
	}

	s.logger.Info("monthly report generated",
		zap.String("report_id", report.ID),
		zap.String("blob_name", blobName),
	)
	return report, nil
}

// DownloadReport returns the stored PDF of a month
func (s *ReportService) DownloadReport(ctx context.Context, userID string, month time.Time) ([]byte, error) {
	blobName := fmt.Sprintf("reports/%s/%s.pdf", userID, month.Format(MonthLayout))
	data, err := s.storage.DownloadReport(ctx, blobName)
	if errors.Is(err, azure.ErrReportNotFound) {
		return nil, &engine.NotFoundError{Kind: "report", ID: month.Format(MonthLayout)}
	}
	if err != nil {
		s.logger.Error("failed to download report",
			zap.Error(err),
			zap.String("blob_name", blobName),
		)
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	return data, nil
}

func historyInMonth(history []model.HistoryItem, month time.Time) []model.HistoryItem {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)

	out := make([]model.HistoryItem, 0, len(history))
	for _, h := range history {
		if !h.Timestamp.Before(start) && h.Timestamp.Before(end) {
			out = append(out, h)
		}
	}
	return out
}
