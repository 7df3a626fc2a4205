package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"honeypot/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sampleTexts = []string{
	"",
	"   \t\n",
	"Hi, can we schedule a meeting tomorrow at 3 PM?",
	"Your SBI account will be blocked within 24 hours. Update KYC now.",
	"URGENT!!! CLICK HERE http://bit.ly/x TO CLAIM YOUR REWARD",
	"Send OTP and CVV to verify your debit card, pay to scammer@upi",
	"Account AB1234567890 flagged. Call 9876543210 or mail help@secure-bank.com",
	"\xff\xfe\x00garbage\x80",
	"work from home, earn 50000 per month, registration fee only 999, guaranteed returns",
}

func TestClassifyScenarioA(t *testing.T) {
	res := Default().Classify("Your SBI account will be blocked within 24 hours. Update KYC now.")

	assert.True(t, res.IsScam)
	assert.GreaterOrEqual(t, res.Confidence, 0.3)
	assert.Contains(t, []models.RiskTier{models.RiskMedium, models.RiskHigh, models.RiskCritical}, res.RiskTier)
	assert.Contains(t, res.MatchedKeywords, "will be blocked")
	assert.Contains(t, res.MatchedKeywords, "update kyc")
}

func TestClassifyScenarioB(t *testing.T) {
	res := Default().Classify("Hi, can we schedule a meeting tomorrow at 3 PM?")

	assert.False(t, res.IsScam)
	assert.Less(t, res.Confidence, 0.3)
	assert.Equal(t, models.RiskLow, res.RiskTier)
}

func TestClassifyEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		res := Default().Classify(text)
		assert.False(t, res.IsScam)
		assert.Zero(t, res.RawScore)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, models.RiskLow, res.RiskTier)
		assert.Empty(t, res.MatchedKeywords)
	}
}

func TestClassifyDeterministicAndInRange(t *testing.T) {
	c := Default()
	for _, text := range sampleTexts {
		first := c.Classify(text)
		second := c.Classify(text)
		assert.Equal(t, first, second, "text %q", text)
		assert.GreaterOrEqual(t, first.Confidence, 0.0)
		assert.LessOrEqual(t, first.Confidence, 1.0)
		assert.Equal(t, TierFor(first.Confidence), first.RiskTier)
	}
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		confidence float64
		want       models.RiskTier
	}{
		{0.29, models.RiskLow},
		{0.30, models.RiskMedium},
		{0.49, models.RiskMedium},
		{0.50, models.RiskHigh},
		{0.69, models.RiskHigh},
		{0.70, models.RiskCritical},
		{1.0, models.RiskCritical},
		{0, models.RiskLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierFor(tc.confidence), "confidence %v", tc.confidence)
	}
}

func TestClassifyStructuralPatterns(t *testing.T) {
	res := Default().Classify("reach me at someone@example.com or 98765432101")

	assert.Contains(t, res.MatchedKeywords, "pattern:email")
	assert.Contains(t, res.MatchedKeywords, "pattern:long_digits")
	assert.Contains(t, res.MatchedKeywords, "pattern:handle_domain")
	assert.NotContains(t, res.MatchedKeywords, "pattern:url")
}

func TestClassifyShoutingBonus(t *testing.T) {
	res := Default().Classify("HELLO THERE FRIEND")

	assert.Contains(t, res.MatchedKeywords, CapsLabel)
	assert.InDelta(t, capsBonus, res.RawScore, 1e-9)
	assert.Equal(t, 0.19, res.Confidence)
	assert.False(t, res.IsScam)
}

func TestClassifyConfidenceSaturates(t *testing.T) {
	res := Default().Classify("URGENT: account blocked, verify KYC, share OTP, PIN and CVV via link http://x.io now")

	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, models.RiskCritical, res.RiskTier)
	assert.Greater(t, res.RawScore, NormalizationScore)
}

func TestNewRejectsInvalidLexicon(t *testing.T) {
	cases := map[string]Lexicon{
		"empty":           {},
		"empty category":  {"urgency": {}},
		"blank phrase":    {"urgency": {"  ": 1}},
		"zero weight":     {"urgency": {"urgent": 0}},
		"duplicate":       {"urgency": {"now": 1}, "other": {"NOW": 2}},
		"negative weight": {"urgency": {"urgent": -2}},
	}
	for name, lex := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(lex)
			require.Error(t, err)
		})
	}
}

func TestLoadLexicon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yml")
	require.NoError(t, os.WriteFile(path, []byte("urgency:\n  urgent: 4\n  act fast: 4\n"), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)

	c, err := New(lex)
	require.NoError(t, err)

	res := c.Classify("Urgent, act fast")
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, []string{"act fast", "urgent"}, res.MatchedKeywords)
}

func TestLoadLexiconMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yml")
	require.NoError(t, os.WriteFile(path, []byte("urgency: [not, a, map"), 0o644))

	_, err := LoadLexicon(path)
	require.Error(t, err)

	_, err = LoadLexicon(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
}
