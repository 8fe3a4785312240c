// Package pdf renders a report artifact as a paginated PDF document.
// Content and ordering mirror the Markdown encoder; rendering is the
// only concern here.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

const timestampLayout = time.RFC3339

func Encode(report domain.Report) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 18)
	doc.AddPage()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	title(doc, tr, report.Title)
	line(doc, tr, fmt.Sprintf("Last updated: %s", report.LastUpdated.UTC().Format(timestampLayout)), 9, "I")
	doc.Ln(4)

	heading(doc, tr, "Executive Summary")
	line(doc, tr, report.ExecutiveSummary, 10, "")
	doc.Ln(3)

	for _, section := range report.Sections {
		heading(doc, tr, section.Heading)
		for _, bullet := range section.Bullets {
			line(doc, tr, "- "+bullet, 10, "")
		}
		doc.Ln(3)
	}

	heading(doc, tr, "Recommendations")
	for _, rec := range report.Recommendations {
		line(doc, tr, "- "+rec, 10, "")
	}
	doc.Ln(3)

	heading(doc, tr, "Next Steps")
	for i, step := range report.NextSteps {
		line(doc, tr, fmt.Sprintf("%d. %s", i+1, step), 10, "")
	}
	doc.Ln(3)

	heading(doc, tr, "Revision History")
	for _, rev := range report.RevisionHistory {
		line(doc, tr, fmt.Sprintf("- %s: %s", rev.Timestamp.UTC().Format(timestampLayout), rev.Highlights), 10, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func title(doc *fpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 8, tr(text), "", "L", false)
	doc.Ln(2)
}

func heading(doc *fpdf.Fpdf, tr func(string) string, text string) {
	doc.SetFont("Helvetica", "B", 12)
	doc.MultiCell(0, 7, tr(text), "", "L", false)
	doc.Ln(1)
}

func line(doc *fpdf.Fpdf, tr func(string) string, text string, size float64, style string) {
	doc.SetFont("Helvetica", style, size)
	doc.MultiCell(0, 5.5, tr(text), "", "L", false)
}
