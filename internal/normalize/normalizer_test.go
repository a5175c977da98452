package normalize

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"national with spaces", "06 12 34 56 78", "+33612345678"},
		{"national with dots", "06.12.34.56.78", "+33612345678"},
		{"national with dashes", "01-42-68-53-00", "+33142685300"},
		{"already e164", "+33612345678", "+33612345678"},
		{"e164 with spaces", "+33 6 12 34 56 78", "+33612345678"},
		{"country code no plus", "33612345678", "+33612345678"},
		{"nine digits no leading zero", "612345678", "+33612345678"},
		{"crm prefix", "p:0612345678", "+33612345678"},
		{"crm tel prefix", "T:06 12 34 56 78", "+33612345678"},
		{"parentheses", "(06) 12 34 56 78", "+33612345678"},
		{"international 00 passes through", "0033612345678", "0033612345678"},
		{"foreign e164 passes through", "+4915112345678", "+4915112345678"},
		{"too short passes through", "12345", "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"06 12 34 56 78", "33612345678", "612345678", "+4915112345678", "0033612345678"}
	for _, in := range inputs {
		once := NormalizePhone(in)
		if twice := NormalizePhone(once); twice != once {
			t.Errorf("NormalizePhone not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestTryFixEmailDomain(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		wantFixed bool
	}{
		{"jean@gmailcom", "jean@gmail.com", true},
		{"jean@wanadoofr", "jean@wanadoo.fr", true},
		{"jean@orangefr", "jean@orange.fr", true},
		{"jean@exemplefr", "jean@exemple.fr", true},     // TLD re-dotting
		{"jean@monsitecom", "jean@monsite.com", true},   // TLD re-dotting
		{"jean@gmail.com", "jean@gmail.com", false},     // already has a dot
		{"jean@fr", "jean@fr", false},                   // nothing before the TLD
		{"jean@xfr", "jean@xfr", false},                 // under 2 chars before TLD
		{"not-an-email", "not-an-email", false},         // no @ at all
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, fixed := TryFixEmailDomain(tt.in)
			if got != tt.want || fixed != tt.wantFixed {
				t.Errorf("TryFixEmailDomain(%q) = (%q, %v), want (%q, %v)",
					tt.in, got, fixed, tt.want, tt.wantFixed)
			}
		})
	}
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"75008", "75008"},
		{"1000", "01000"},
		{"9000", "09000"},
		{"75 008", "75008"},
		{" 1000 ", "01000"},
		{"AB12", "AB12"},     // non-numeric, untouched
		{"123", "123"},       // not 4 digits, untouched
		{"SW1A 1AA", "SW1A1AA"},
	}
	for _, tt := range tests {
		if got := NormalizePostalCode(tt.in); got != tt.want {
			t.Errorf("NormalizePostalCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"JEAN", "Jean"},
		{"dupont", "Dupont"},
		{"  marie   claire ", "Marie Claire"},
		{"d'artagnan", "D'artagnan"},
		{"léa", "Léa"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \t b\n c  "); got != "a b c" {
		t.Errorf("CollapseWhitespace = %q", got)
	}
}
