package normalize

import (
	"testing"

	"github.com/ignite/lead-importer/internal/mapping"
)

func TestValidateRowCleanRow(t *testing.T) {
	result := ValidateRow(1, map[mapping.FieldKey]string{
		mapping.FieldFirstName: "JEAN",
		mapping.FieldLastName:  "dupont",
		mapping.FieldEmail:     " Jean.Dupont@Gmail.com ",
		mapping.FieldPhone:     "06 12 34 56 78",
		mapping.FieldCompany:   "acme sarl",
	})

	if !result.IsValid {
		t.Fatalf("expected valid row, errors: %v", result.Errors)
	}
	if got := result.NormalizedData[mapping.FieldEmail]; got != "jean.dupont@gmail.com" {
		t.Errorf("email = %q", got)
	}
	if got := result.NormalizedData[mapping.FieldPhone]; got != "+33612345678" {
		t.Errorf("phone = %q", got)
	}
	if got := result.NormalizedData[mapping.FieldFirstName]; got != "Jean" {
		t.Errorf("first name = %q", got)
	}
	if got := result.NormalizedData[mapping.FieldCountry]; got != "France" {
		t.Errorf("country default = %q", got)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateRowEmailAutoFix(t *testing.T) {
	result := ValidateRow(2, map[mapping.FieldKey]string{
		mapping.FieldEmail: "jean@gmailcom",
	})

	if !result.IsValid {
		t.Fatalf("repaired email should be valid, errors: %v", result.Errors)
	}
	if got := result.NormalizedData[mapping.FieldEmail]; got != "jean@gmail.com" {
		t.Errorf("email = %q, want repaired form", got)
	}
	if _, ok := result.Warnings[string(mapping.FieldEmail)]; !ok {
		t.Error("auto-fix must surface as a warning")
	}
}

func TestValidateRowMalformedEmail(t *testing.T) {
	result := ValidateRow(3, map[mapping.FieldKey]string{
		mapping.FieldEmail: "not-an-email",
	})

	if result.IsValid {
		t.Fatal("malformed email must block the row")
	}
	if _, ok := result.Errors[string(mapping.FieldEmail)]; !ok {
		t.Errorf("expected email error, got %v", result.Errors)
	}
}

func TestValidateRowContactRequirement(t *testing.T) {
	// Name only: normalizes fine but has no contact anchor.
	result := ValidateRow(4, map[mapping.FieldKey]string{
		mapping.FieldFirstName: "Jean",
		mapping.FieldLastName:  "Dupont",
		mapping.FieldEmail:     "   ",
	})

	if result.IsValid {
		t.Fatal("row without contact info must be invalid")
	}
	if _, ok := result.Errors[FieldContact]; !ok {
		t.Errorf("expected contact error, got %v", result.Errors)
	}

	// External id alone satisfies the requirement.
	result = ValidateRow(5, map[mapping.FieldKey]string{
		mapping.FieldExternalID: "CRM-001",
	})
	if !result.IsValid {
		t.Fatalf("external id should satisfy contact requirement, errors: %v", result.Errors)
	}
}

func TestValidateRowWarnings(t *testing.T) {
	result := ValidateRow(6, map[mapping.FieldKey]string{
		mapping.FieldPhone: "12345678901234567890",
	})

	if !result.IsValid {
		t.Fatalf("warnings must not invalidate the row, errors: %v", result.Errors)
	}
	if _, ok := result.Warnings[string(mapping.FieldPhone)]; !ok {
		t.Error("expected phone length warning")
	}
	if _, ok := result.Warnings["name"]; !ok {
		t.Error("expected missing-name warning")
	}
	if _, ok := result.Warnings[string(mapping.FieldCompany)]; !ok {
		t.Error("expected missing-company warning")
	}
}

func TestValidateRowBlankFieldsAbsent(t *testing.T) {
	result := ValidateRow(7, map[mapping.FieldKey]string{
		mapping.FieldEmail: "jean@exemple.fr",
		mapping.FieldCity:  "   ",
	})

	if _, ok := result.NormalizedData[mapping.FieldCity]; ok {
		t.Error("blank field must be absent from normalized data, not empty")
	}
}
