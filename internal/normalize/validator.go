package normalize

import (
	"fmt"
	"regexp"

	"github.com/ignite/lead-importer/internal/mapping"
)

// NormalizedRow maps canonical fields to their cleaned values. A field
// absent from the map is blank in the source; an empty string never appears
// as a value.
type NormalizedRow map[mapping.FieldKey]string

// RowValidationResult is the immutable outcome of validating one data row.
// IsValid is true iff Errors is empty; warnings never affect validity.
// Duplicate status is tracked separately by the dedupe engine.
type RowValidationResult struct {
	RowNumber      int               `json:"row_number"`
	IsValid        bool              `json:"is_valid"`
	Errors         map[string]string `json:"errors,omitempty"`
	Warnings       map[string]string `json:"warnings,omitempty"`
	NormalizedData NormalizedRow     `json:"normalized_data"`
}

// FieldContact is the synthetic field the contact-requirement error is
// reported on.
const FieldContact = "contact"

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// ValidateRow normalizes every present field and applies the schema and
// business rules. Per-row problems are accumulated in the result, never
// returned as errors.
//
// Rules:
//   - at least one of email, phone or external_id must survive
//     normalization, else a blocking error on the synthetic contact field
//   - email shape is checked after domain auto-fix; a repaired address that
//     became valid is a warning referencing the original input, one that is
//     still malformed is a blocking error
//   - phone digit count outside [8,15] is a warning only
//   - missing name or company is a warning only
//   - country defaults to France when absent
func ValidateRow(rowNumber int, rawFields map[mapping.FieldKey]string) RowValidationResult {
	result := RowValidationResult{
		RowNumber:      rowNumber,
		Errors:         map[string]string{},
		Warnings:       map[string]string{},
		NormalizedData: NormalizedRow{},
	}

	for field, raw := range rawFields {
		if v := NormalizeField(field, raw); v != "" {
			result.NormalizedData[field] = v
		}
	}

	if email, ok := result.NormalizedData[mapping.FieldEmail]; ok {
		fixed, wasFixed := TryFixEmailDomain(email)
		if wasFixed {
			result.NormalizedData[mapping.FieldEmail] = fixed
		}
		switch {
		case !emailShape.MatchString(fixed):
			result.Errors[string(mapping.FieldEmail)] = fmt.Sprintf("malformed email address: %q", rawFields[mapping.FieldEmail])
		case wasFixed:
			result.Warnings[string(mapping.FieldEmail)] = fmt.Sprintf("email domain auto-corrected from %q", rawFields[mapping.FieldEmail])
		}
	}

	if phone, ok := result.NormalizedData[mapping.FieldPhone]; ok {
		if n := countDigits(phone); n < minPhoneDigits || n > maxPhoneDigits {
			result.Warnings[string(mapping.FieldPhone)] = fmt.Sprintf("unusual phone number length (%d digits)", n)
		}
	}

	if !hasContactInfo(result.NormalizedData) {
		result.Errors[FieldContact] = "at least one of email, phone or external_id is required"
	}

	if _, ok := result.NormalizedData[mapping.FieldFirstName]; !ok {
		if _, ok := result.NormalizedData[mapping.FieldLastName]; !ok {
			result.Warnings["name"] = "no first or last name provided"
		}
	}
	if _, ok := result.NormalizedData[mapping.FieldCompany]; !ok {
		result.Warnings[string(mapping.FieldCompany)] = "no company provided"
	}

	if _, ok := result.NormalizedData[mapping.FieldCountry]; !ok {
		result.NormalizedData[mapping.FieldCountry] = "France"
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func hasContactInfo(row NormalizedRow) bool {
	for _, f := range []mapping.FieldKey{mapping.FieldEmail, mapping.FieldPhone, mapping.FieldExternalID} {
		if row[f] != "" {
			return true
		}
	}
	return false
}
