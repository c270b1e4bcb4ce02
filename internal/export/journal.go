package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"dispatch-service/internal/model"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"

	timestampLayout = "02.01.2006 15:04:05"
)

// ContentType returns the MIME type for a supported format, or "" if unknown.
func ContentType(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return ""
	}
}

const journalLineHeight = 6.0

var (
	journalColumns = []string{"Zeit", "Typ", "Auftrag", "Eintrag"}
	journalWidths  = []float64{35, 30, 25, 100}
)

// rowHeight is the height of the tallest wrapped cell in a table row. The
// current font must already be set.
func rowHeight(pdf *gofpdf.Fpdf, widths []float64, cells []string, lineHeight float64) float64 {
	lines := 1
	for i, text := range cells {
		if n := len(pdf.SplitLines([]byte(text), widths[i])); n > lines {
			lines = n
		}
	}
	return float64(lines) * lineHeight
}

// BuildJournalPDF renders the operation log as a printable table.
func BuildJournalPDF(op *model.Operation, entries []model.JournalEntryView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(fmt.Sprintf("Einsatztagebuch %s", op.Number)))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(op.Title))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", op.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Erstellt: %s", op.CreatedAt.Format(timestampLayout)))
	pdf.Ln(5)
	if op.ClosedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Geschlossen: %s", op.ClosedAt.Format(timestampLayout)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		for i, title := range journalColumns {
			pdf.CellFormat(journalWidths[i], journalLineHeight, title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	left, _, _, bottom := pdf.GetMargins()
	for _, entry := range entries {
		assignment := ""
		if entry.AssignmentNumber != nil {
			assignment = *entry.AssignmentNumber
		}
		cells := []string{
			entry.Timestamp.Format(timestampLayout),
			tr(entry.EntryType),
			assignment,
			tr(entry.Content),
		}
		height := rowHeight(pdf, journalWidths, cells, journalLineHeight)
		if pdf.GetY()+height > pageHeight-bottom {
			pdf.AddPage()
			header()
		}

		x, y := left, pdf.GetY()
		for i, text := range cells {
			pdf.Rect(x, y, journalWidths[i], height, "D")
			pdf.SetXY(x, y)
			pdf.MultiCell(journalWidths[i], journalLineHeight, text, "", "L", false)
			x += journalWidths[i]
		}
		pdf.SetXY(left, y+height)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildJournalXLSX renders the operation log with one row per entry.
func BuildJournalXLSX(op *model.Operation, entries []model.JournalEntryView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "Einsatz"
	journalSheet := "Tagebuch"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(journalSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Einsatznummer")
	_ = f.SetCellValue(summarySheet, "B1", op.Number)
	_ = f.SetCellValue(summarySheet, "A2", "Titel")
	_ = f.SetCellValue(summarySheet, "B2", op.Title)
	_ = f.SetCellValue(summarySheet, "A3", "Beschreibung")
	_ = f.SetCellValue(summarySheet, "B3", op.Description)
	_ = f.SetCellValue(summarySheet, "A4", "Status")
	_ = f.SetCellValue(summarySheet, "B4", string(op.Status))
	_ = f.SetCellValue(summarySheet, "A5", "Erstellt")
	_ = f.SetCellValue(summarySheet, "B5", op.CreatedAt.Format(time.RFC3339))
	if op.ClosedAt != nil {
		_ = f.SetCellValue(summarySheet, "A6", "Geschlossen")
		_ = f.SetCellValue(summarySheet, "B6", op.ClosedAt.Format(time.RFC3339))
	}

	_ = f.SetCellValue(journalSheet, "A1", "Zeit")
	_ = f.SetCellValue(journalSheet, "B1", "Typ")
	_ = f.SetCellValue(journalSheet, "C1", "Auftrag")
	_ = f.SetCellValue(journalSheet, "D1", "Eintrag")
	for i, entry := range entries {
		row := i + 2
		assignment := ""
		if entry.AssignmentNumber != nil {
			assignment = *entry.AssignmentNumber
		}
		_ = f.SetCellValue(journalSheet, fmt.Sprintf("A%d", row), entry.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(journalSheet, fmt.Sprintf("B%d", row), entry.EntryType)
		_ = f.SetCellValue(journalSheet, fmt.Sprintf("C%d", row), assignment)
		_ = f.SetCellValue(journalSheet, fmt.Sprintf("D%d", row), entry.Content)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
