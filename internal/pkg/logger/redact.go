package logger

import (
	"regexp"
	"strings"
)

var embeddedEmail = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactValue masks contact data before it reaches the log stream. Keys
// that name an email or phone field are masked outright; other values only
// have embedded email addresses scrubbed.
func redactValue(key, val string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "email"):
		return RedactEmail(val)
	case strings.Contains(k, "phone"):
		return RedactPhone(val)
	}
	return embeddedEmail.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an address for safe logging.
// "jeanne.dupont@example.fr" becomes "je***@example.fr"; local parts of two
// characters or fewer are fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***@***"
	}
	local := email[:at]
	if len(local) > 2 {
		return local[:2] + "***@" + email[at+1:]
	}
	return "***@" + email[at+1:]
}

// RedactPhone keeps only the last two digits: "+33612345678" becomes
// "+*********78". Values too short to be a number are fully masked.
func RedactPhone(phone string) string {
	if len(phone) < 4 {
		return "***"
	}
	prefix := ""
	if strings.HasPrefix(phone, "+") {
		prefix = "+"
	}
	return prefix + strings.Repeat("*", len(phone)-len(prefix)-2) + phone[len(phone)-2:]
}
