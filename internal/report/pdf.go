package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/healthbook/healthbook/internal/models"
)

// Generator renders medical histories into PDF files.
type Generator struct {
	outputDir string
	now       func() time.Time
}

// NewGenerator creates a Generator writing into outputDir (the OS temp
// directory when empty). Report files are ephemeral: the caller removes them
// after delivery, on success and failure alike.
func NewGenerator(outputDir string) *Generator {
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &Generator{outputDir: outputDir, now: time.Now}
}

// Generate renders the history to a PDF file and returns its path. An empty
// history (no events) yields models.ErrNoMedicalHistory and no file.
func (g *Generator) Generate(history models.MedicalHistory) (string, error) {
	if len(history.Events) == 0 {
		return "", models.ErrNoMedicalHistory
	}
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	filename := fmt.Sprintf("medical_report_%s_%s.pdf", history.UserID, g.now().Format("20060102_150405"))
	path := filepath.Join(g.outputDir, filename)

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(25, 25, 25)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	g.writeTitle(pdf)
	g.writeSummary(pdf, history)
	g.writeCategory(pdf, "Active Medical Conditions", history.Conditions)
	g.writeCategory(pdf, "Current Medications", history.Medications)
	g.writeCategory(pdf, "Reported Symptoms", history.Symptoms)
	g.writeCategory(pdf, "Reported Incidents", history.Incidents)
	g.writeCategory(pdf, "Affected Areas", history.BodyParts)
	g.writeTimeline(pdf, history.Events)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write report PDF: %w", err)
	}
	slog.Info("medical report generated", "user_id", history.UserID, "path", path, "events", len(history.Events))
	return path, nil
}

func (g *Generator) writeTitle(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(30, 61, 89)
	pdf.MultiCell(0, 12, "HealthBook - Your Comprehensive Medical History Report", "", "C", false)
	pdf.Ln(10)
}

func (g *Generator) writeSummary(pdf *fpdf.Fpdf, history models.MedicalHistory) {
	g.sectionHeader(pdf, "Executive Summary")
	lines := []string{
		"Patient ID: " + history.UserID,
		"Report Generated: " + g.now().Format("2006-01-02 15:04"),
		fmt.Sprintf("Total Records: %d", len(history.Events)),
		"Date Range: " + dateRange(history.Events),
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(44, 62, 80)
	for _, line := range lines {
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	pdf.Ln(6)
}

func (g *Generator) writeCategory(pdf *fpdf.Fpdf, title string, items []string) {
	if len(items) == 0 {
		return
	}
	g.sectionHeader(pdf, title)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(44, 62, 80)
	for _, item := range items {
		pdf.MultiCell(0, 6, "- "+item, "", "L", false)
	}
	pdf.Ln(4)
}

func (g *Generator) writeTimeline(pdf *fpdf.Fpdf, events []models.HistoryEvent) {
	g.sectionHeader(pdf, "Medical Timeline")
	for _, event := range events {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(108, 117, 125)
		pdf.MultiCell(0, 5, formatEventDate(event.Date), "", "L", false)

		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(44, 62, 80)
		content := cleanContent(event.Content)
		if content == "" {
			content = "N/A"
		}
		pdf.MultiCell(0, 6, content, "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 167, 69)
		pdf.MultiCell(0, 5, "Type: "+titleCase(event.Type), "", "L", false)
		pdf.Ln(3)
	}
}

func (g *Generator) sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(23, 162, 184)
	pdf.MultiCell(0, 9, title, "", "L", false)
	pdf.Ln(2)
}

func titleCase(s string) string {
	if s == "" {
		return "General"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
