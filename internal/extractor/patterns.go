package extractor

import "regexp"

// indicatorPattern extracts one intelligence category.
type indicatorPattern struct {
	kind string
	res  []*regexp.Regexp
}

// Order matters only for readability of logs; every pattern runs on every message.
var indicatorPatterns = []indicatorPattern{
	{kind: "phoneNumbers", res: []*regexp.Regexp{
		regexp.MustCompile(`\+91\d{10}|\b91\d{10}|\(?\d{3}\)?-?\d{3}-?\d{4}`),
	}},
	{kind: "bankAccounts", res: []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]{2}\d{10,}|\d{4}[\s-]\d{4}[\s-]\d{4}[\s-]\d{4}`),
	}},
	{kind: "upiIds", res: []*regexp.Regexp{
		regexp.MustCompile(`[\w.-]+@[a-zA-Z]{3,}`),
		regexp.MustCompile(`[a-zA-Z0-9._-]+@(?:upi|okaxis|ibl|okhdfcbank)`),
	}},
	{kind: "phishingLinks", res: []*regexp.Regexp{
		regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+`),
	}},
	{kind: "emails", res: []*regexp.Regexp{
		regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	}},
}

// keywordCategory is one family of the suspicious keyword taxonomy.
type keywordCategory struct {
	name     string
	keywords []string
}

// taxonomy is scanned in order. Within a category only the first keyword
// (in list order) that occurs becomes a tactic; the others still count as
// suspicious keywords.
var taxonomy = []keywordCategory{
	{"urgency", []string{"urgent", "immediately", "now", "quickly", "asap", "don't delay"}},
	{"threats", []string{"blocked", "suspended", "locked", "freeze", "legal action", "arrest", "fine"}},
	{"verification", []string{"verify", "confirm", "validate", "authenticate", "confirm identity"}},
	{"payment", []string{"upi", "bank transfer", "credit card", "debit card", "payment"}},
	{"personal_info", []string{"otp", "pin", "password", "cvv", "account number"}},
	{"phishing", []string{"click link", "download app", "visit site", "open attachment"}},
}
