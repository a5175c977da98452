package normalize

import (
	"strings"
	"unicode"

	"github.com/ignite/lead-importer/internal/mapping"
)

// brokenDomains maps common dotless domain typos to their intended form.
var brokenDomains = map[string]string{
	"gmailcom":   "gmail.com",
	"gmailfr":    "gmail.fr",
	"yahoocom":   "yahoo.com",
	"yahoofr":    "yahoo.fr",
	"hotmailcom": "hotmail.com",
	"hotmailfr":  "hotmail.fr",
	"outlookcom": "outlook.com",
	"outlookfr":  "outlook.fr",
	"orangefr":   "orange.fr",
	"wanadoofr":  "wanadoo.fr",
	"freefr":     "free.fr",
	"sfrfr":      "sfr.fr",
	"lapostenet": "laposte.net",
	"icloudcom":  "icloud.com",
	"livefr":     "live.fr",
	"livecom":    "live.com",
}

// knownTLDs are tried, longest first, when re-inserting a missing dot.
var knownTLDs = []string{"com", "net", "org", "fr", "be", "de", "eu", "io"}

// NormalizeEmail lowercases and trims an email address. It does not attempt
// any repair; see TryFixEmailDomain.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// TryFixEmailDomain repairs a missing dot in the domain part of an already
// normalized address. It first consults a lookup table of common broken
// domains, then tries re-inserting a dot before a recognized TLD, provided
// at least 2 characters remain before it. The returned flag reports whether
// a repair was applied; the caller surfaces it as a warning, never an error,
// when the result is syntactically valid.
func TryFixEmailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, false
	}
	domain := email[at+1:]
	if strings.Contains(domain, ".") {
		return email, false
	}
	if fixed, ok := brokenDomains[domain]; ok {
		return email[:at+1] + fixed, true
	}
	for _, tld := range knownTLDs {
		if strings.HasSuffix(domain, tld) && len(domain)-len(tld) >= 2 {
			base := domain[:len(domain)-len(tld)]
			return email[:at+1] + base + "." + tld, true
		}
	}
	return email, false
}

// NormalizePhone canonicalizes French phone numbers to +33 E.164 form.
// A leading "p:" or "t:" prefix (CRM export artifact) is stripped, then all
// characters except digits and a leading + are removed. Shapes handled:
//
//	0X XX XX XX XX (10 digits)  -> +33 followed by the last 9 digits
//	33XXXXXXXXX (11 digits)     -> prefixed with +
//	XXXXXXXXX (9 digits)        -> prefixed with +33
//
// Numbers already starting with + pass through, as does any other shape,
// including the 00 international prefix. That last case is a known
// limitation kept on purpose.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "p:") || strings.HasPrefix(lower, "t:") {
		s = s[2:]
	}

	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		if r == '+' && i == 0 {
			b.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	p := b.String()

	switch {
	case strings.HasPrefix(p, "+"):
		return p
	case len(p) == 10 && p[0] == '0':
		return "+33" + p[1:]
	case len(p) == 11 && strings.HasPrefix(p, "33"):
		return "+" + p
	case len(p) == 9:
		return "+33" + p
	default:
		return p
	}
}

// NormalizePostalCode strips internal spaces and left-pads 4-digit numeric
// codes with a leading zero (French departments 01-09). Anything else
// passes through.
func NormalizePostalCode(raw string) string {
	code := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if len(code) == 4 && isDigits(code) {
		return "0" + code
	}
	return code
}

// NormalizeName lowercases then title-cases each whitespace-delimited word.
func NormalizeName(raw string) string {
	words := strings.Fields(strings.ToLower(raw))
	for i, w := range words {
		runes := []rune(w)
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// CollapseWhitespace trims and collapses internal whitespace runs to a
// single space.
func CollapseWhitespace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// NormalizeField applies the per-field cleanup for one value. Blank or
// whitespace-only input yields "", which callers treat as absent. Email is
// handled separately by the validator so the auto-fix flag can surface as a
// warning.
func NormalizeField(field mapping.FieldKey, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	switch field {
	case mapping.FieldEmail:
		return NormalizeEmail(raw)
	case mapping.FieldPhone:
		return NormalizePhone(raw)
	case mapping.FieldPostalCode:
		return NormalizePostalCode(raw)
	case mapping.FieldFirstName, mapping.FieldLastName, mapping.FieldCompany, mapping.FieldCity:
		return NormalizeName(raw)
	default:
		return CollapseWhitespace(raw)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
