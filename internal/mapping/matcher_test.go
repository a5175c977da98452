package mapping

import "testing"

func TestFindBestMatchExact(t *testing.T) {
	tests := []struct {
		header string
		want   FieldKey
	}{
		{"email", FieldEmail},
		{"Email", FieldEmail},
		{"E-mail", FieldEmail},
		{"  Adresse Email  ", FieldEmail},
		{"Téléphone", FieldPhone},
		{"Prénom", FieldFirstName},
		{"NOM", FieldLastName},
		{"Société", FieldCompany},
		{"code postal", FieldPostalCode},
		{"numero de telephone", FieldPhone},
		{"Commercial", FieldAssignedTo},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			field, confidence := FindBestMatch(tt.header)
			if field != tt.want {
				t.Fatalf("FindBestMatch(%q) = %s, want %s", tt.header, field, tt.want)
			}
			if confidence != 1.0 {
				t.Errorf("FindBestMatch(%q) confidence = %v, want 1.0", tt.header, confidence)
			}
		})
	}
}

func TestFindBestMatchFuzzy(t *testing.T) {
	tests := []struct {
		header string
		want   FieldKey
	}{
		{"lead_email", FieldEmail},
		{"Email_2", FieldEmail},
		{"work_phone", FieldPhone},
		{"billing_city", FieldCity},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			field, confidence := FindBestMatch(tt.header)
			if field != tt.want {
				t.Fatalf("FindBestMatch(%q) = %s (%.2f), want %s", tt.header, field, confidence, tt.want)
			}
			if confidence < AutoAcceptConfidence {
				t.Errorf("FindBestMatch(%q) confidence = %.2f, want >= %.2f", tt.header, confidence, AutoAcceptConfidence)
			}
			if confidence >= 1.0 {
				t.Errorf("FindBestMatch(%q) confidence = %.2f, non-exact match must stay below 1.0", tt.header, confidence)
			}
		})
	}
}

func TestFindBestMatchRejectsNoise(t *testing.T) {
	for _, header := range []string{"", "###", "random_gibberish_xyz"} {
		field, confidence := FindBestMatch(header)
		if confidence >= AutoAcceptConfidence {
			t.Errorf("FindBestMatch(%q) = %s (%.2f), want below auto-accept", header, field, confidence)
		}
	}
}

func TestFindBestMatchDeterministic(t *testing.T) {
	headers := []string{"email", "lead_email", "tel portable", "random_gibberish_xyz", "Société"}
	for _, h := range headers {
		f1, c1 := FindBestMatch(h)
		f2, c2 := FindBestMatch(h)
		if f1 != f2 || c1 != c2 {
			t.Errorf("FindBestMatch(%q) not deterministic: (%s, %v) vs (%s, %v)", h, f1, c1, f2, c2)
		}
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  First Name ", "first_name"},
		{"Téléphone", "telephone"},
		{"E-MAIL", "email"},
		{"adresse   e-mail", "adresse_email"},
		{"__email__", "email"},
		{"###", ""},
	}
	for _, tt := range tests {
		if got := normalizeHeader(tt.in); got != tt.want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripAffixes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lead_email", "email"},
		{"first_name", "first"},
		{"billing_address_1", "address"},
		{"tel", "tel"}, // too short to strip further
	}
	for _, tt := range tests {
		if got := stripAffixes(tt.in); got != tt.want {
			t.Errorf("stripAffixes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripNumericSuffix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"email_1", "email"},
		{"email2", "email"},
		{"phone", "phone"},
		{"42", "42"}, // nothing left, keep as-is
	}
	for _, tt := range tests {
		if got := stripNumericSuffix(tt.in); got != tt.want {
			t.Errorf("stripNumericSuffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSuggestMappingsOneColumnPerField(t *testing.T) {
	header := []string{"Email", "Courriel", "Prénom", "mystery_column"}
	mappings := SuggestMappings(header)

	if len(mappings) != len(header) {
		t.Fatalf("got %d mappings for %d columns", len(mappings), len(header))
	}
	if mappings[0].TargetField != FieldEmail {
		t.Errorf("column 0 mapped to %q, want email", mappings[0].TargetField)
	}
	// Second email candidate must stay unmapped but keep its score.
	if mappings[1].TargetField != "" {
		t.Errorf("column 1 mapped to %q, want unmapped (email already claimed)", mappings[1].TargetField)
	}
	if mappings[1].Confidence == 0 {
		t.Error("column 1 near-miss confidence should be reported")
	}
	if mappings[2].TargetField != FieldFirstName {
		t.Errorf("column 2 mapped to %q, want first_name", mappings[2].TargetField)
	}
	if mappings[3].TargetField != "" {
		t.Errorf("column 3 mapped to %q, want unmapped", mappings[3].TargetField)
	}
}

func TestAssignFieldReassigns(t *testing.T) {
	mappings := SuggestMappings([]string{"Email", "Courriel"})

	AssignField(mappings, 1, FieldEmail)

	if mappings[0].TargetField != "" {
		t.Errorf("previous holder kept field %q, want cleared", mappings[0].TargetField)
	}
	if mappings[1].TargetField != FieldEmail || !mappings[1].IsManual || mappings[1].Confidence != 1.0 {
		t.Errorf("manual assignment not applied: %+v", mappings[1])
	}
}
