package extractor

import (
	"strings"

	"honeypot/internal/models"
)

// FallbackSummary is used when no tactic could be named.
const FallbackSummary = "Suspicious message detected"

var keywordFamilies = []struct {
	keywords []string
	phrase   string
}{
	{[]string{"urgent", "immediately", "now"}, "Used urgency tactics"},
	{[]string{"blocked", "suspended", "locked"}, "Threatened account suspension"},
	{[]string{"legal action", "arrest", "fine"}, "Threatened legal consequences"},
}

// Summarize renders a human-readable description of the tactics in rec.
func Summarize(rec models.IntelligenceRecord) string {
	var parts []string

	if len(rec.PhoneNumbers) > 0 {
		parts = append(parts, "Requested phone number sharing")
	}
	if len(rec.UPIIDs) > 0 {
		parts = append(parts, "Solicited payment handle")
	}
	if len(rec.BankAccounts) > 0 {
		parts = append(parts, "Attempted to collect bank account details")
	}
	if len(rec.PhishingLinks) > 0 {
		parts = append(parts, "Shared suspicious links for phishing")
	}

	present := make(map[string]bool, len(rec.SuspiciousKeywords))
	for _, kw := range rec.SuspiciousKeywords {
		present[kw] = true
	}
	for _, family := range keywordFamilies {
		for _, kw := range family.keywords {
			if present[kw] {
				parts = append(parts, family.phrase)
				break
			}
		}
	}

	if len(parts) == 0 {
		return FallbackSummary
	}
	return strings.Join(parts, " | ")
}
