package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ignite/lead-importer/internal/mapping"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		for j, cell := range row {
			axis, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", axis, cell); err != nil {
				t.Fatal(err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestParseWorkbook(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"email", "prenom", "commercial"},
		{"jean@exemple.fr", "jean", "Sophie Martin"},
		{"not-an-email", "paul", ""},
	})

	sink := &collectSink{}
	res, err := ParseWorkbook(context.Background(), buf, testMappings(), sink, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseWorkbook: %v", err)
	}

	if res.TotalRows != 2 || res.ValidRows != 1 || res.InvalidRows != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", res.TotalRows, res.ValidRows, res.InvalidRows)
	}
	rows := sink.rows()
	if len(rows) != 2 {
		t.Fatalf("sink got %d rows", len(rows))
	}
	if got := rows[0].NormalizedData[mapping.FieldEmail]; got != "jean@exemple.fr" {
		t.Errorf("email = %q", got)
	}
	if rows[1].IsValid {
		t.Error("second row should be invalid")
	}
}

func TestParseWorkbookEmpty(t *testing.T) {
	buf := buildWorkbook(t, nil)

	_, err := ParseWorkbook(context.Background(), buf, testMappings(), &collectSink{}, ParseOptions{})
	if err == nil {
		t.Fatal("expected error for empty workbook")
	}
}

func TestReadWorkbookHeader(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"Email", "Prénom"},
		{"jean@exemple.fr", "Jean"},
		{"marie@exemple.fr", "Marie"},
	})

	header, samples, err := ReadWorkbookHeader(buf, "", 1)
	if err != nil {
		t.Fatalf("ReadWorkbookHeader: %v", err)
	}
	if len(header) != 2 || header[0] != "Email" {
		t.Errorf("header = %v", header)
	}
	if len(samples) != 1 || samples[0][0] != "jean@exemple.fr" {
		t.Errorf("samples = %v", samples)
	}
}
