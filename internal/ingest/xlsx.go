package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/lead-importer/internal/mapping"
)

// ParseWorkbook streams the first (or selected) worksheet of an XLSX file
// through the row pipeline. Truly empty rows carry no cells and are skipped
// without consuming a row number.
func ParseWorkbook(ctx context.Context, r io.Reader, mappings []mapping.ColumnMapping, sink RowSink, opts ParseOptions) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoWorksheet
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}
	defer rows.Close()

	// The first non-empty row is the header; consume it before handing the
	// iterator to the shared loop.
	headerSeen := false
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if rowIsEmpty(cells) {
			continue
		}
		headerSeen = true
		break
	}
	if !headerSeen {
		return nil, ErrEmptyFile
	}

	next := func() ([]string, error) {
		for rows.Next() {
			cells, err := rows.Columns()
			if err != nil {
				return nil, err
			}
			if len(cells) == 0 || rowIsEmpty(cells) {
				continue
			}
			return cells, nil
		}
		if err := rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return run(ctx, next, mappings, sink, opts)
}

// ReadWorkbookHeader returns the first non-empty row of the first (or
// selected) worksheet plus up to sampleRows following data rows, for
// mapping suggestion before a full parse.
func ReadWorkbookHeader(r io.Reader, sheetName string, sampleRows int) (header []string, samples [][]string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := sheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, ErrNoWorksheet
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read worksheet %q: %w", sheet, err)
	}
	defer rows.Close()

	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, nil, err
		}
		if rowIsEmpty(cells) {
			continue
		}
		if header == nil {
			header = cells
			continue
		}
		samples = append(samples, cells)
		if len(samples) >= sampleRows {
			break
		}
	}
	if header == nil {
		return nil, nil, ErrEmptyFile
	}
	return header, samples, nil
}
