// Package extractor pulls structured indicators (accounts, payment
// handles, phone numbers, links) and scam tactics out of a conversation.
package extractor

import (
	"strings"

	"honeypot/internal/models"
)

// Extractor is stateless and safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract scans the whole conversation. Indicator patterns run per
// message so that text appended later can never displace an earlier
// match; the keyword taxonomy runs over the joined buffer.
func (e *Extractor) Extract(messages []models.Message) models.IntelligenceRecord {
	found := make(map[string][]string, len(indicatorPatterns))
	texts := make([]string, 0, len(messages))

	for _, msg := range messages {
		text := strings.ToValidUTF8(msg.Text, "")
		texts = append(texts, text)
		for _, p := range indicatorPatterns {
			for _, re := range p.res {
				for _, m := range re.FindAllString(text, -1) {
					found[p.kind] = append(found[p.kind], strings.TrimSpace(m))
				}
			}
		}
	}

	rec := models.IntelligenceRecord{
		PhoneNumbers:  models.SetOf(found[models.KindPhoneNumber]...),
		BankAccounts:  models.SetOf(found[models.KindBankAccount]...),
		UPIIDs:        models.SetOf(found[models.KindUPIID]...),
		PhishingLinks: models.SetOf(found[models.KindPhishingLink]...),
		Emails:        models.SetOf(found[models.KindEmail]...),
	}

	rec.SuspiciousKeywords, rec.Tactics = scanKeywords(strings.ToLower(strings.Join(texts, " ")))
	return rec
}

// ExtractText is a convenience for a single message.
func (e *Extractor) ExtractText(text string) models.IntelligenceRecord {
	return e.Extract([]models.Message{{Text: text}})
}

func scanKeywords(buffer string) ([]string, []models.Tactic) {
	var keywords []string
	tactics := []models.Tactic{}

	for _, category := range taxonomy {
		recorded := false
		for _, kw := range category.keywords {
			if !strings.Contains(buffer, kw) {
				continue
			}
			keywords = append(keywords, kw)
			if !recorded {
				tactics = append(tactics, models.Tactic{Category: category.name, Keyword: kw})
				recorded = true
			}
		}
	}
	return models.SetOf(keywords...), tactics
}
