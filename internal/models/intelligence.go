package models

import "sort"

// Intelligence kinds, used as the `kind` column of the intelligence relation.
const (
	KindBankAccount       = "bankAccounts"
	KindUPIID             = "upiIds"
	KindPhishingLink      = "phishingLinks"
	KindPhoneNumber       = "phoneNumbers"
	KindEmail             = "emails"
	KindSuspiciousKeyword = "suspiciousKeywords"
	KindTactic            = "tactic"
)

// Tactic records one manipulation technique observed in a conversation.
type Tactic struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

// IntelligenceRecord holds indicators extracted from a conversation.
// Every string field is a set kept in sorted order; Tactics keeps
// first-seen order with at most one entry per category.
type IntelligenceRecord struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	Emails             []string `json:"emails"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
	Tactics            []Tactic `json:"tactics"`
}

// IntelItem is a flattened (kind, value) pair.
type IntelItem struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// NewIntelligenceRecord returns a record with every set initialized to empty,
// so JSON encodes [] rather than null.
func NewIntelligenceRecord() IntelligenceRecord {
	return IntelligenceRecord{
		BankAccounts:       []string{},
		UPIIDs:             []string{},
		PhishingLinks:      []string{},
		PhoneNumbers:       []string{},
		Emails:             []string{},
		SuspiciousKeywords: []string{},
		Tactics:            []Tactic{},
	}
}

// HasIndicators reports whether any hard indicator (account, handle, link, phone) was seen.
func (r IntelligenceRecord) HasIndicators() bool {
	return len(r.BankAccounts) > 0 || len(r.UPIIDs) > 0 ||
		len(r.PhishingLinks) > 0 || len(r.PhoneNumbers) > 0
}

// Merge returns the per-field union of r and other. Neither input is modified.
func (r IntelligenceRecord) Merge(other IntelligenceRecord) IntelligenceRecord {
	return IntelligenceRecord{
		BankAccounts:       union(r.BankAccounts, other.BankAccounts),
		UPIIDs:             union(r.UPIIDs, other.UPIIDs),
		PhishingLinks:      union(r.PhishingLinks, other.PhishingLinks),
		PhoneNumbers:       union(r.PhoneNumbers, other.PhoneNumbers),
		Emails:             union(r.Emails, other.Emails),
		SuspiciousKeywords: union(r.SuspiciousKeywords, other.SuspiciousKeywords),
		Tactics:            mergeTactics(r.Tactics, other.Tactics),
	}
}

// Clone returns a deep copy.
func (r IntelligenceRecord) Clone() IntelligenceRecord {
	return NewIntelligenceRecord().Merge(r)
}

// Items flattens the record into (kind, value) pairs. Tactics are
// encoded as "category:keyword".
func (r IntelligenceRecord) Items() []IntelItem {
	var items []IntelItem
	add := func(kind string, values []string) {
		for _, v := range values {
			items = append(items, IntelItem{Kind: kind, Value: v})
		}
	}
	add(KindBankAccount, r.BankAccounts)
	add(KindUPIID, r.UPIIDs)
	add(KindPhishingLink, r.PhishingLinks)
	add(KindPhoneNumber, r.PhoneNumbers)
	add(KindEmail, r.Emails)
	add(KindSuspiciousKeyword, r.SuspiciousKeywords)
	for _, t := range r.Tactics {
		items = append(items, IntelItem{Kind: KindTactic, Value: t.Category + ":" + t.Keyword})
	}
	return items
}

// SetOf builds a sorted, de-duplicated set from values, dropping empty strings.
func SetOf(values ...string) []string {
	return union(nil, values)
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func mergeTactics(a, b []Tactic) []Tactic {
	out := make([]Tactic, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]Tactic{a, b} {
		for _, t := range list {
			if _, ok := seen[t.Category]; ok {
				continue
			}
			seen[t.Category] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
