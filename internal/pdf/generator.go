package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// maxVitalRows limits the vitals table to the most recent readings
const maxVitalRows = 10

// PDFGenerator renders the monthly clinical report
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// AdherenceFigures are the ledger and dose counts printed in the summary
type AdherenceFigures struct {
	Coins         float64
	Streak        int
	Taken         int
	Missed        int
	Pending       int
	AdherenceRate float64
}

// ReportData contains everything a monthly report shows
type ReportData struct {
	UserName    string
	Conditions  []model.ChronicCondition
	Month       time.Time
	GeneratedAt time.Time
	Adherence   AdherenceFigures
	Medications []model.Medication
	Vitals      []model.VitalReading // newest first
	History     []model.HistoryItem  // newest first, already limited to Month
}

// Generate creates the PDF document
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating PDF report",
		zap.String("user_name", data.UserName),
		zap.String("month", data.Month.Format("2006-01")),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle("Monthly Clinical Report", false)
	pdf.AddPage()

	g.addTitle(pdf, data)
	g.addAdherenceSummary(pdf, data.Adherence, len(data.History))
	g.addVitalTrends(pdf, data.Vitals)
	g.addMedicationLedger(pdf, data.Medications)
	g.addActivityLog(pdf, data.History)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("PDF report generated successfully",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, data *ReportData) {
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, "Monthly Clinical Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	conditions := "None declared"
	if len(data.Conditions) > 0 {
		names := make([]string, 0, len(data.Conditions))
		for _, c := range data.Conditions {
			names = append(names, string(c))
		}
		conditions = strings.Join(names, " | ")
	}

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Patient: %s", strings.ToUpper(data.UserName)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Chronic Conditions: %s", conditions), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s", data.Month.Format("January 2006")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", data.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addAdherenceSummary(pdf *gofpdf.Fpdf, a AdherenceFigures, actions int) {
	g.addSectionHeader(pdf, "1. Adherence Summary")

	lines := []string{
		fmt.Sprintf("Streak: %d days", a.Streak),
		fmt.Sprintf("Adherence rate: %.0f%%", a.AdherenceRate),
		fmt.Sprintf("Doses taken: %d, missed: %d, pending: %d", a.Taken, a.Missed, a.Pending),
		fmt.Sprintf("Logged actions this month: %d", actions),
		fmt.Sprintf("Coin balance: %s", strconv.FormatFloat(a.Coins, 'f', -1, 64)),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addVitalTrends(pdf *gofpdf.Fpdf, vitals []model.VitalReading) {
	g.addSectionHeader(pdf, "2. Recent Vital Trends")

	if len(vitals) == 0 {
		pdf.CellFormat(0, 8, "No vitals recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	var sysTotal, diaTotal, bpCount int
	for _, v := range vitals {
		if v.Systolic != nil && v.Diastolic != nil {
			sysTotal += *v.Systolic
			diaTotal += *v.Diastolic
			bpCount++
		}
	}
	if bpCount > 0 {
		pdf.CellFormat(0, 6, fmt.Sprintf("Average BP: %.0f/%.0f mmHg over %d readings",
			float64(sysTotal)/float64(bpCount), float64(diaTotal)/float64(bpCount), bpCount), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}

	rows := len(vitals)
	if rows > maxVitalRows {
		rows = maxVitalRows
	}
	for _, v := range vitals[:rows] {
		pdf.CellFormat(0, 5, fmt.Sprintf("[%s] BP: %s/%s | Sugar: %s mg/dL | TSH: %s",
			v.Date.Format("2006-01-02"),
			optionalInt(v.Systolic), optionalInt(v.Diastolic), optionalInt(v.Glucose), optionalFloat(v.TSH),
		), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addMedicationLedger(pdf *gofpdf.Fpdf, medications []model.Medication) {
	g.addSectionHeader(pdf, "3. Medication Ledger")

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, "No medications recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, med := range medications {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s (%s)", strings.ToUpper(med.Name), med.Dosage), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, fmt.Sprintf("  Time: %s, %s | Stock: %d | Status: %s", med.Time, med.Frequency, med.Count, med.Status()), "", 1, "L", false, 0, "")
		if !med.Chronic && med.StartDate != nil && med.EndDate != nil {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Course: %s to %s", med.StartDate.Format("2006-01-02"), med.EndDate.Format("2006-01-02")), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addActivityLog(pdf *gofpdf.Fpdf, history []model.HistoryItem) {
	g.addSectionHeader(pdf, "4. Activity Log")

	if len(history) == 0 {
		pdf.CellFormat(0, 8, "No activity this month.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	for _, h := range history {
		line := fmt.Sprintf("%s  %s", h.Timestamp.Format("2006-01-02 15:04"), h.Title)
		if h.Value != "" {
			line += fmt.Sprintf(" (%s)", h.Value)
		}
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
