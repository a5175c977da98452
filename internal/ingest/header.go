package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
)

// ReadDelimitedHeader returns the header row and up to sampleRows following
// data rows of a delimited source, auto-detecting the delimiter when delim
// is 0. Used to drive mapping suggestion before a full parse.
func ReadDelimitedHeader(r io.Reader, delim rune, sampleRows int) (header []string, samples [][]string, detected rune, err error) {
	br := bufio.NewReaderSize(stripBOM(r), 64*1024)

	if delim == 0 {
		sample, _ := br.Peek(8 * 1024)
		delim = detectDelimiter(string(sample))
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err = reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, delim, ErrEmptyFile
		}
		return nil, nil, delim, fmt.Errorf("read header: %w", err)
	}

	for len(samples) < sampleRows {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if !rowIsEmpty(row) {
			samples = append(samples, row)
		}
	}
	return header, samples, delim, nil
}
