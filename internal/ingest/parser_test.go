package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ignite/lead-importer/internal/mapping"
)

func testMappings() []mapping.ColumnMapping {
	return []mapping.ColumnMapping{
		{SourceColumn: "email", SourceIndex: 0, TargetField: mapping.FieldEmail},
		{SourceColumn: "prenom", SourceIndex: 1, TargetField: mapping.FieldFirstName},
		{SourceColumn: "commercial", SourceIndex: 2},
	}
}

type collectSink struct {
	batches [][]RowResult
}

func (c *collectSink) Flush(ctx context.Context, batch []RowResult) error {
	copied := make([]RowResult, len(batch))
	copy(copied, batch)
	c.batches = append(c.batches, copied)
	return nil
}

func (c *collectSink) rows() []RowResult {
	var all []RowResult
	for _, b := range c.batches {
		all = append(all, b...)
	}
	return all
}

func TestParseDelimitedBasic(t *testing.T) {
	csvData := "email,prenom,commercial\n" +
		"jean@exemple.fr,jean,Sophie Martin\n" +
		"not-an-email,paul,\n" +
		"marie@exemple.fr,marie,Sophie Martin\n"

	sink := &collectSink{}
	res, err := ParseDelimited(context.Background(), strings.NewReader(csvData), testMappings(), sink, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}

	if res.TotalRows != 3 || res.ValidRows != 2 || res.InvalidRows != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", res.TotalRows, res.ValidRows, res.InvalidRows)
	}

	rows := sink.rows()
	if len(rows) != 3 {
		t.Fatalf("sink got %d rows", len(rows))
	}
	for i, r := range rows {
		if r.RowNumber != i+1 {
			t.Errorf("row %d numbered %d", i, r.RowNumber)
		}
	}
	if rows[1].IsValid {
		t.Error("row 2 with malformed email should be invalid")
	}
	// Unmapped column's raw value must survive for by-column assignment.
	if got := rows[0].RawData["commercial"]; got != "Sophie Martin" {
		t.Errorf("raw commercial cell = %q", got)
	}
	if got := rows[0].NormalizedData[mapping.FieldFirstName]; got != "Jean" {
		t.Errorf("normalized first name = %q", got)
	}
}

func TestParseDelimitedSemicolonAutoDetect(t *testing.T) {
	csvData := "email;prenom;commercial\n" +
		"jean@exemple.fr;jean;\n"

	sink := &collectSink{}
	res, err := ParseDelimited(context.Background(), strings.NewReader(csvData), testMappings(), sink, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}
	if res.TotalRows != 1 || res.ValidRows != 1 {
		t.Errorf("counts = %+v", res)
	}
	if got := sink.rows()[0].NormalizedData[mapping.FieldEmail]; got != "jean@exemple.fr" {
		t.Errorf("email = %q, semicolon was not detected", got)
	}
}

func TestParseDelimitedBOM(t *testing.T) {
	csvData := "\xEF\xBB\xBFemail,prenom,commercial\njean@exemple.fr,jean,\n"

	sink := &collectSink{}
	res, err := ParseDelimited(context.Background(), strings.NewReader(csvData), testMappings(), sink, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}
	if res.ValidRows != 1 {
		t.Errorf("BOM broke the parse: %+v", res)
	}
}

func TestParseDelimitedHeaderOnly(t *testing.T) {
	sink := &collectSink{}
	res, err := ParseDelimited(context.Background(), strings.NewReader("email,prenom,commercial\n"), testMappings(), sink, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}
	if res.TotalRows != 0 {
		t.Errorf("TotalRows = %d, want 0", res.TotalRows)
	}
	if len(sink.batches) != 0 {
		t.Errorf("sink invoked %d times for header-only file", len(sink.batches))
	}
}

func TestParseDelimitedEmptyFile(t *testing.T) {
	_, err := ParseDelimited(context.Background(), strings.NewReader(""), testMappings(), &collectSink{}, ParseOptions{})
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("err = %v, want ErrEmptyFile", err)
	}
}

func TestParseDelimitedBatching(t *testing.T) {
	var b strings.Builder
	b.WriteString("email,prenom,commercial\n")
	for i := 0; i < 5; i++ {
		b.WriteString("jean@exemple.fr,jean,\n")
	}

	sink := &collectSink{}
	_, err := ParseDelimited(context.Background(), strings.NewReader(b.String()), testMappings(), sink, ParseOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}

	if len(sink.batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(sink.batches))
	}
	sizes := []int{len(sink.batches[0]), len(sink.batches[1]), len(sink.batches[2])}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Errorf("batch sizes = %v, want [2 2 1]", sizes)
	}
}

func TestParseDelimitedStartRow(t *testing.T) {
	csvData := "email,prenom,commercial\n" +
		"a@exemple.fr,a,\n" +
		"b@exemple.fr,b,\n" +
		"c@exemple.fr,c,\n"

	sink := &collectSink{}
	res, err := ParseDelimited(context.Background(), strings.NewReader(csvData), testMappings(), sink, ParseOptions{StartRow: 3})
	if err != nil {
		t.Fatalf("ParseDelimited: %v", err)
	}

	if res.TotalRows != 1 {
		t.Errorf("TotalRows = %d, want 1 (resume skips already-processed rows)", res.TotalRows)
	}
	rows := sink.rows()
	if len(rows) != 1 || rows[0].RowNumber != 3 {
		t.Fatalf("resumed rows = %+v, want single row numbered 3", rows)
	}
	if got := rows[0].NormalizedData[mapping.FieldEmail]; got != "c@exemple.fr" {
		t.Errorf("resumed at wrong row: %q", got)
	}
}

func TestParseDelimitedSinkErrorAborts(t *testing.T) {
	csvData := "email,prenom,commercial\n" +
		"a@exemple.fr,a,\n" +
		"b@exemple.fr,b,\n"

	sinkErr := errors.New("storage down")
	sink := RowSinkFunc(func(ctx context.Context, batch []RowResult) error { return sinkErr })

	_, err := ParseDelimited(context.Background(), strings.NewReader(csvData), testMappings(), sink, ParseOptions{BatchSize: 1})
	if !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want wrapped sink error", err)
	}
}

func TestParseDelimitedRejectsBadMapping(t *testing.T) {
	_, err := ParseDelimited(context.Background(), strings.NewReader("a,b\n1,2\n"),
		[]mapping.ColumnMapping{{SourceColumn: "a", SourceIndex: 0}}, &collectSink{}, ParseOptions{})
	if !errors.Is(err, ErrInvalidMapping) {
		t.Errorf("err = %v, want ErrInvalidMapping", err)
	}

	dup := []mapping.ColumnMapping{
		{SourceColumn: "a", SourceIndex: 0, TargetField: mapping.FieldEmail},
		{SourceColumn: "b", SourceIndex: 1, TargetField: mapping.FieldEmail},
	}
	_, err = ParseDelimited(context.Background(), strings.NewReader("a,b\n1,2\n"), dup, &collectSink{}, ParseOptions{})
	if err == nil || !strings.Contains(err.Error(), "more than one column") {
		t.Errorf("err = %v, want duplicate-field rejection", err)
	}
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		sample string
		want   rune
	}{
		{"a,b,c\n1,2,3", ','},
		{"a;b;c\n1;2;3", ';'},
		{"a\tb\tc", '\t'},
		{"justoneheader", ','},
		{"a;b,c;d", ';'},
	}
	for _, tt := range tests {
		if got := detectDelimiter(tt.sample); got != tt.want {
			t.Errorf("detectDelimiter(%q) = %q, want %q", tt.sample, got, tt.want)
		}
	}
}

func TestReadDelimitedHeader(t *testing.T) {
	csvData := "email;prenom\njean@exemple.fr;jean\nmarie@exemple.fr;marie\npaul@exemple.fr;paul\n"

	header, samples, detected, err := ReadDelimitedHeader(strings.NewReader(csvData), 0, 2)
	if err != nil {
		t.Fatalf("ReadDelimitedHeader: %v", err)
	}
	if detected != ';' {
		t.Errorf("detected = %q", detected)
	}
	if len(header) != 2 || header[0] != "email" {
		t.Errorf("header = %v", header)
	}
	if len(samples) != 2 {
		t.Errorf("got %d samples, want 2", len(samples))
	}
}
