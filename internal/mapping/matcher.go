package mapping

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
)

// CRM export artifacts routinely decorate column names. Stripping one prefix
// and one suffix is enough in practice; stacked decorations fall through to
// the fuzzier strategies.
var headerPrefixes = []string{
	"lead_", "contact_", "billing_", "shipping_", "customer_",
	"client_", "primary_", "main_", "work_", "personal_",
}

var headerSuffixes = []string{
	"_name", "_address", "_number", "_1", "_2", "_3",
	"_fb", "_ig", "_pro", "_perso", "_2024", "_2025",
}

// FindBestMatch scores a raw column header against every known field alias
// and returns the field with the globally highest confidence, in [0,1].
// An exact match on a normalized alias short-circuits at 1.0. Ties keep the
// first field found (AllFields order, then alias order). Returns ("", 0)
// for a blank header.
func FindBestMatch(header string) (FieldKey, float64) {
	h := normalizeHeader(header)
	if h == "" {
		return "", 0
	}

	var bestField FieldKey
	var best float64

	for _, field := range AllFields {
		for _, alias := range fieldAliases[field] {
			a := normalizeHeader(alias)
			if h == a {
				return field, 1.0
			}
			if score := scorePair(h, a); score > best {
				best = score
				bestField = field
			}
		}
	}
	return bestField, best
}

// normalizeHeader lowercases, strips diacritics (NFD decomposition with
// combining marks removed), collapses whitespace runs to single underscores
// and drops any remaining character outside [a-z0-9_].
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range norm.NFD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from decomposition
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && r != '_' {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// scorePair applies the non-exact strategies to one header/alias pair and
// returns the best confidence any of them yields.
func scorePair(h, a string) float64 {
	var best float64

	// Affix-stripped equality: "lead_email" vs "email", "first" vs "first_name".
	hs, as := stripAffixes(h), stripAffixes(a)
	if (hs != h || as != a) && hs == as && len(hs) >= 3 {
		best = 0.95
	}

	// Numeric-suffix-insensitive equality: "email_1" vs "email".
	hn, an := stripNumericSuffix(h), stripNumericSuffix(a)
	if best < 0.95 && (hn != h || an != a) && hn == an && len(hn) > 2 {
		best = 0.95
	}

	if s := similarityScore(h, a); s > best {
		best = s
	}

	// Retry the fuzzy strategies with the stripped header against the raw
	// alias, penalized for the extra transform.
	if hs != h && hs != "" {
		if s := similarityScore(hs, a) * 0.98; s > best {
			best = s
		}
	}

	return best
}

// similarityScore covers whole-word containment, substring containment,
// word-set overlap and Levenshtein similarity, returning the best of them.
func similarityScore(h, a string) float64 {
	var best float64

	hw := splitWords(h)
	aw := splitWords(a)

	// Whole-word containment: single-word side appears in the other's word list.
	if (len(hw) == 1 && wordIn(hw[0], aw)) || (len(aw) == 1 && wordIn(aw[0], hw)) {
		best = 0.92
	}

	// Substring containment, scaled by the length ratio of the two strings.
	if strings.Contains(h, a) || strings.Contains(a, h) {
		shorter, longer := len(h), len(a)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if s := 0.85 + 0.10*float64(shorter)/float64(longer); s > best {
			best = s
		}
	}

	// Word overlap covering at least half of the smaller word set.
	if len(hw) > 1 || len(aw) > 1 {
		overlap := wordOverlap(hw, aw)
		smaller := len(hw)
		if len(aw) < smaller {
			smaller = len(aw)
		}
		if smaller > 0 {
			ratio := float64(overlap) / float64(smaller)
			if ratio >= 0.5 {
				if s := 0.80 + 0.10*ratio; s > best {
					best = s
				}
			}
		}
	}

	// Normalized Levenshtein similarity as the floor. The caller decides
	// what confidence is usable; low scores are returned as-is.
	maxLen := len([]rune(h))
	if l := len([]rune(a)); l > maxLen {
		maxLen = l
	}
	if maxLen > 0 {
		d := fuzzy.LevenshteinDistance(h, a)
		if s := 1.0 - float64(d)/float64(maxLen); s > best {
			best = s
		}
	}

	return best
}

// stripAffixes removes one known prefix and one known suffix, keeping the
// result only when at least 3 characters remain.
func stripAffixes(s string) string {
	for _, p := range headerPrefixes {
		if strings.HasPrefix(s, p) && len(s)-len(p) >= 3 {
			s = s[len(p):]
			break
		}
	}
	for _, suf := range headerSuffixes {
		if strings.HasSuffix(s, suf) && len(s)-len(suf) >= 3 {
			s = s[:len(s)-len(suf)]
			break
		}
	}
	return s
}

// stripNumericSuffix drops a trailing digit run and its separating
// underscore, so "email_1" and "email2" both reduce to "email".
func stripNumericSuffix(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return s
	}
	trimmed := strings.TrimSuffix(s[:i], "_")
	if trimmed == "" {
		return s
	}
	return trimmed
}

func splitWords(s string) []string {
	parts := strings.Split(s, "_")
	words := parts[:0]
	for _, p := range parts {
		if p != "" {
			words = append(words, p)
		}
	}
	return words
}

func wordIn(w string, words []string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func wordOverlap(a, b []string) int {
	n := 0
	for _, w := range a {
		if wordIn(w, b) {
			n++
		}
	}
	return n
}
