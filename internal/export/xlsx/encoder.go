// Package xlsx renders a report artifact as an Excel workbook, one
// sheet per report area.
package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

const timestampLayout = time.RFC3339

func Encode(report domain.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const brief = "Brief"
	if err := f.SetSheetName("Sheet1", brief); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{
		{"Title", report.Title},
		{"Last updated", report.LastUpdated.UTC().Format(timestampLayout)},
		{"Executive summary", report.ExecutiveSummary},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(brief, cell, &row); err != nil {
			return nil, fmt.Errorf("write brief row: %w", err)
		}
	}

	if err := writeSections(f, report.Sections); err != nil {
		return nil, err
	}
	if err := writeList(f, "Recommendations", report.Recommendations); err != nil {
		return nil, err
	}
	if err := writeList(f, "Next Steps", report.NextSteps); err != nil {
		return nil, err
	}
	if err := writeRevisions(f, report.RevisionHistory); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSections(f *excelize.File, sections []domain.Section) error {
	const name = "Sections"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	row := 1
	for _, section := range sections {
		values := []any{section.Heading}
		for _, bullet := range section.Bullets {
			values = append(values, bullet)
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write section row: %w", err)
		}
		row++
	}
	return nil
}

func writeList(f *excelize.File, name string, items []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{i + 1, item}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row: %w", name, err)
		}
	}
	return nil
}

func writeRevisions(f *excelize.File, revisions []domain.Revision) error {
	const name = "Revision History"
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, rev := range revisions {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := []any{rev.Timestamp.UTC().Format(timestampLayout), rev.Question, rev.Highlights}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write revision row: %w", err)
		}
	}
	return nil
}
