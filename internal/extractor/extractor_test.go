package extractor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"honeypot/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msgs(texts ...string) []models.Message {
	out := make([]models.Message, 0, len(texts))
	for _, t := range texts {
		out = append(out, models.Message{Sender: models.SenderCounterparty, Text: t})
	}
	return out
}

func TestExtractIndicators(t *testing.T) {
	rec := New().Extract(msgs(
		"Transfer to account AB12345678901 or card 1234-5678-9012-3456 today",
		"Pay to refund.desk@okaxis and visit https://sbi-kyc.example/login or www.claim-now.in",
		"Call +919876543210 or mail support@fake-bank.com",
	))

	assert.Equal(t, []string{"1234-5678-9012-3456", "AB12345678901"}, rec.BankAccounts)
	assert.Contains(t, rec.UPIIDs, "refund.desk@okaxis")
	assert.Equal(t, []string{"https://sbi-kyc.example/login", "www.claim-now.in"}, rec.PhishingLinks)
	assert.Contains(t, rec.PhoneNumbers, "+919876543210")
	assert.Equal(t, []string{"support@fake-bank.com"}, rec.Emails)
}

func TestExtractScenarioCAcrossTurns(t *testing.T) {
	e := New()
	session := models.NewIntelligenceRecord()

	history := msgs("Sir, pay to scammer@upi to release the refund")
	session = session.Merge(e.Extract(history))

	history = append(history, msgs("Or call me on +919876543210")...)
	session = session.Merge(e.Extract(history))

	assert.Equal(t, []string{"scammer@upi"}, session.UPIIDs)
	assert.Equal(t, []string{"+919876543210"}, session.PhoneNumbers)
}

func TestExtractDeduplicates(t *testing.T) {
	rec := New().Extract(msgs(
		"pay scammer@upi",
		"I said pay scammer@upi, scammer@upi!",
	))

	assert.Equal(t, []string{"scammer@upi"}, rec.UPIIDs)
}

func TestExtractTacticsFirstKeywordPerCategory(t *testing.T) {
	rec := New().Extract(msgs("Your account is blocked and suspended. Act now, it's urgent. Verify with OTP and PIN."))

	want := []models.Tactic{
		{Category: "urgency", Keyword: "urgent"},
		{Category: "threats", Keyword: "blocked"},
		{Category: "verification", Keyword: "verify"},
		{Category: "personal_info", Keyword: "otp"},
	}
	if diff := cmp.Diff(want, rec.Tactics); diff != "" {
		t.Errorf("tactics mismatch (-want +got):\n%s", diff)
	}

	// The second threat keyword is not a tactic but is still recorded.
	assert.Contains(t, rec.SuspiciousKeywords, "suspended")
	assert.Contains(t, rec.SuspiciousKeywords, "now")
	assert.Contains(t, rec.SuspiciousKeywords, "pin")
}

func TestExtractEmpty(t *testing.T) {
	for _, history := range [][]models.Message{nil, msgs(""), msgs("   ", "\xff\xfe")} {
		rec := New().Extract(history)
		assert.False(t, rec.HasIndicators())
		assert.Empty(t, rec.SuspiciousKeywords)
		assert.Empty(t, rec.Tactics)
	}
}

func TestExtractMonotonic(t *testing.T) {
	e := New()
	turns := msgs(
		"Hello sir, this is customer care",
		"Your card 1234 5678 9012 3456 is locked, confirm now",
		"Send OTP to 9876543210 immediately",
		"Or pay via https://pay.example/x to helpdesk@ybl",
		"Final warning: legal action and arrest",
	)

	for i := 1; i <= len(turns); i++ {
		shorter := e.Extract(turns[:i-1])
		longer := e.Extract(turns[:i])
		assertSubset(t, shorter.BankAccounts, longer.BankAccounts)
		assertSubset(t, shorter.UPIIDs, longer.UPIIDs)
		assertSubset(t, shorter.PhishingLinks, longer.PhishingLinks)
		assertSubset(t, shorter.PhoneNumbers, longer.PhoneNumbers)
		assertSubset(t, shorter.Emails, longer.Emails)
		assertSubset(t, shorter.SuspiciousKeywords, longer.SuspiciousKeywords)
		assertSubset(t, tacticCategories(shorter), tacticCategories(longer))
	}
}

func TestExtractText(t *testing.T) {
	rec := New().ExtractText("click link www.win.example")
	assert.Equal(t, []string{"www.win.example"}, rec.PhishingLinks)
	assert.Equal(t, []models.Tactic{{Category: "phishing", Keyword: "click link"}}, rec.Tactics)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, FallbackSummary, Summarize(models.NewIntelligenceRecord()))

	rec := models.IntelligenceRecord{
		UPIIDs:             []string{"x@upi"},
		SuspiciousKeywords: []string{"blocked", "now"},
	}
	assert.Equal(t, "Solicited payment handle | Used urgency tactics | Threatened account suspension", Summarize(rec))
}

func assertSubset(t *testing.T, subset, superset []string) {
	t.Helper()
	set := make(map[string]bool, len(superset))
	for _, v := range superset {
		set[v] = true
	}
	for _, v := range subset {
		assert.True(t, set[v], "%q missing from %v", v, superset)
	}
}

func tacticCategories(rec models.IntelligenceRecord) []string {
	out := make([]string, 0, len(rec.Tactics))
	for _, tc := range rec.Tactics {
		out = append(out, tc.Category)
	}
	return out
}
