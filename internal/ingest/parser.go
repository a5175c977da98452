package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ignite/lead-importer/internal/mapping"
	"github.com/ignite/lead-importer/internal/normalize"
)

var (
	ErrEmptyFile      = errors.New("file contains no rows")
	ErrInvalidMapping = errors.New("column mapping has no target fields")
	ErrNoWorksheet    = errors.New("workbook contains no worksheet")
)

// DefaultBatchSize is the number of row results accumulated before the sink
// is invoked.
const DefaultBatchSize = 500

// RowResult pairs one row's validation outcome with its raw cells, keyed by
// source column name. Raw values survive to the commit phase so by-column
// assignment can read columns that were never mapped to a field.
type RowResult struct {
	normalize.RowValidationResult
	RawData map[string]string `json:"raw_data"`
}

// RowSink receives fixed-size batches of row results during a parse. Each
// call is awaited before more input is read, so the parser never gets ahead
// of persistence. Any error aborts the whole parse.
type RowSink interface {
	Flush(ctx context.Context, batch []RowResult) error
}

// RowSinkFunc adapts a function to the RowSink interface.
type RowSinkFunc func(ctx context.Context, batch []RowResult) error

func (f RowSinkFunc) Flush(ctx context.Context, batch []RowResult) error {
	return f(ctx, batch)
}

// ParseOptions tune a single parse run.
type ParseOptions struct {
	// Delimiter for delimited text; 0 auto-detects among comma, semicolon
	// and tab from the header line.
	Delimiter rune
	// BatchSize overrides DefaultBatchSize when > 0.
	BatchSize int
	// StartRow resumes from a checkpoint: data rows numbered below it are
	// read but discarded without validation, preserving row numbering.
	StartRow int
	// SheetName selects a worksheet; empty means the workbook's first sheet.
	SheetName string
}

// ParseResult aggregates one parse run.
type ParseResult struct {
	TotalRows        int   `json:"total_rows"`
	ValidRows        int   `json:"valid_rows"`
	InvalidRows      int   `json:"invalid_rows"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// ParseDelimited streams a CSV/TSV/semicolon-delimited source through the
// row validator, handing fixed-size batches to sink. The first non-empty
// row is always the header and is never validated as data.
func ParseDelimited(ctx context.Context, r io.Reader, mappings []mapping.ColumnMapping, sink RowSink, opts ParseOptions) (*ParseResult, error) {
	br := bufio.NewReaderSize(stripBOM(r), 64*1024)

	delim := opts.Delimiter
	if delim == 0 {
		sample, _ := br.Peek(8 * 1024)
		delim = detectDelimiter(string(sample))
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	// Header row: encoding/csv already skips blank lines pre-read.
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	next := func() ([]string, error) {
		for {
			row, err := reader.Read()
			if err != nil {
				return nil, err
			}
			if !rowIsEmpty(row) {
				return row, nil
			}
		}
	}
	return run(ctx, next, mappings, sink, opts)
}

// run drives the shared row loop: numbering, checkpoint skip, validation,
// batching and sink flushes.
func run(ctx context.Context, next func() ([]string, error), mappings []mapping.ColumnMapping, sink RowSink, opts ParseOptions) (*ParseResult, error) {
	fieldByIndex, err := indexMapping(mappings)
	if err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	result := &ParseResult{}
	batch := make([]RowResult, 0, batchSize)
	rowNumber := 0

	for {
		row, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowNumber+1, err)
		}

		rowNumber++
		if opts.StartRow > 0 && rowNumber < opts.StartRow {
			continue
		}

		rawFields := make(map[mapping.FieldKey]string, len(fieldByIndex))
		for idx, field := range fieldByIndex {
			if idx < len(row) {
				rawFields[field] = row[idx]
			}
		}
		rawData := make(map[string]string, len(mappings))
		for _, m := range mappings {
			if m.SourceIndex < len(row) && row[m.SourceIndex] != "" {
				rawData[m.SourceColumn] = row[m.SourceIndex]
			}
		}

		vr := normalize.ValidateRow(rowNumber, rawFields)
		result.TotalRows++
		if vr.IsValid {
			result.ValidRows++
		} else {
			result.InvalidRows++
		}

		batch = append(batch, RowResult{RowValidationResult: vr, RawData: rawData})
		if len(batch) >= batchSize {
			if err := sink.Flush(ctx, batch); err != nil {
				return nil, fmt.Errorf("flush batch at row %d: %w", rowNumber, err)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := sink.Flush(ctx, batch); err != nil {
			return nil, fmt.Errorf("flush final batch: %w", err)
		}
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// indexMapping inverts a resolved mapping to column index -> field,
// rejecting mappings with no target or with two columns on one field.
func indexMapping(mappings []mapping.ColumnMapping) (map[int]mapping.FieldKey, error) {
	fieldByIndex := make(map[int]mapping.FieldKey)
	seen := make(map[mapping.FieldKey]bool)
	for _, m := range mappings {
		if m.TargetField == "" {
			continue
		}
		if !mapping.IsValidField(m.TargetField) {
			return nil, fmt.Errorf("unknown target field %q for column %q", m.TargetField, m.SourceColumn)
		}
		if seen[m.TargetField] {
			return nil, fmt.Errorf("field %q mapped from more than one column", m.TargetField)
		}
		seen[m.TargetField] = true
		fieldByIndex[m.SourceIndex] = m.TargetField
	}
	if len(fieldByIndex) == 0 {
		return nil, ErrInvalidMapping
	}
	return fieldByIndex, nil
}

// detectDelimiter picks the delimiter with the highest count on the header
// line, defaulting to comma.
func detectDelimiter(sample string) rune {
	if idx := strings.IndexByte(sample, '\n'); idx >= 0 {
		sample = sample[:idx]
	}
	best, bestCount := ',', strings.Count(sample, ",")
	for _, c := range []rune{';', '\t'} {
		if n := strings.Count(sample, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// stripBOM removes a UTF-8 byte order mark, a common artifact of
// Excel-exported CSVs.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
