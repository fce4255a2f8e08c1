// Package report renders a ResultSet as an xlsx workbook, one sheet per
// source.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/maltedev/listing-report/internal/models"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	Filename    = "report.xlsx"
)

var (
	ErrEmptyResultSet = errors.New("result set has no sources")
	ErrDuplicateSheet = errors.New("duplicate sheet name")
)

const defaultSheet = "Sheet1"

// Column widths in characters: title, price, detail.
var columnWidths = []float64{50, 20, 30}

// Build writes one sheet per source in ResultSet order. Each sheet has a
// header row followed by one row per record. It does not modify rs and
// returns identical bytes for identical input.
func Build(rs *models.ResultSet) ([]byte, error) {
	if rs == nil || rs.Len() == 0 {
		return nil, ErrEmptyResultSet
	}

	f := excelize.NewFile()
	defer f.Close()

	names := make(map[string]bool, rs.Len())
	for i, src := range rs.Sources() {
		key := strings.ToLower(src.SourceID)
		if names[key] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSheet, src.SourceID)
		}
		names[key] = true

		if i == 0 {
			if err := f.SetSheetName(defaultSheet, src.SourceID); err != nil {
				return nil, fmt.Errorf("failed to name sheet %q: %w", src.SourceID, err)
			}
		} else if _, err := f.NewSheet(src.SourceID); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", src.SourceID, err)
		}

		if err := writeSheet(f, src); err != nil {
			return nil, fmt.Errorf("failed to write sheet %q: %w", src.SourceID, err)
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, src models.SourceResult) error {
	withDetail := false
	for _, r := range src.Records {
		if r.HasDetailField {
			withDetail = true
			break
		}
	}

	header := []interface{}{"title", "price"}
	if withDetail {
		header = append(header, src.DetailLabel)
	}
	if err := f.SetSheetRow(src.SourceID, "A1", &header); err != nil {
		return err
	}

	for i, r := range src.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(src.SourceID, cell, project(r, withDetail)); err != nil {
			return err
		}
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(src.SourceID, col, col, width); err != nil {
			return err
		}
	}

	return nil
}

// project maps a record onto the fixed column order. Records that were not
// enriched leave the detail cell empty.
func project(r models.Record, withDetail bool) *[]interface{} {
	row := []interface{}{r.Title, r.Price}
	if withDetail {
		if r.HasDetailField {
			row = append(row, r.DetailField)
		} else {
			row = append(row, "")
		}
	}
	return &row
}
