package classifier

import (
	"regexp"
	"strings"
)

// recipientPatterns extract the originally-failed recipient from a bounce
// body, tried in priority order: explicit angle-bracket addresses first,
// then contextual delivery-failure phrases, then any bare address token.
var recipientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<([^<>\s]+@[^<>\s]+\.[^<>\s]+)>`),
	regexp.MustCompile(`(?i)delivery to the following recipient failed[^\n]*?([\w.+-]+@[\w.-]+\.\w+)`),
	regexp.MustCompile(`(?i)your message to ([\w.+-]+@[\w.-]+\.\w+)`),
	regexp.MustCompile(`(?i)([\w.+-]+@[\w.-]+\.\w+) could not be (?:delivered|reached)`),
	regexp.MustCompile(`([\w.+-]+@[\w.-]+\.\w+)`),
}

// systemLocalParts are infrastructure mailbox names that must never be
// suppressed; a bounce report quotes them alongside the real recipient.
var systemLocalParts = map[string]bool{
	"mailer-daemon": true,
	"mail-daemon":   true,
	"postmaster":    true,
	"noreply":       true,
	"no-reply":      true,
	"donotreply":    true,
	"do-not-reply":  true,
	"abuse":         true,
	"bounce":        true,
	"bounces":       true,
}

// ExtractFailedRecipient parses a bounce body for the address whose delivery
// failed. The reporting sender and known infrastructure addresses are
// excluded so only the true failed recipient is suppressed. Returns "" when
// no plausible recipient is found.
func ExtractFailedRecipient(body, reportingSender string) string {
	reporting := strings.ToLower(strings.TrimSpace(reportingSender))

	for _, pattern := range recipientPatterns {
		for _, match := range pattern.FindAllStringSubmatch(body, -1) {
			if len(match) < 2 {
				continue
			}
			candidate := strings.ToLower(strings.Trim(match[1], ".,;:"))
			if candidate == reporting || isSystemAddress(candidate) {
				continue
			}
			return candidate
		}
	}
	return ""
}

func isSystemAddress(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 {
		return true
	}
	return systemLocalParts[email[:at]]
}
