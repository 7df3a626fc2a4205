// Package classifier scores a single message for scam intent with a
// weighted phrase lexicon and a handful of structural patterns.
package classifier

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"honeypot/internal/models"
)

const (
	// NormalizationScore is the raw score that maps to confidence 1.0.
	NormalizationScore = 8.0
	// ScamThreshold is the confidence at which a message counts as a scam.
	ScamThreshold = 0.3

	patternBonus   = 1.5
	capsBonus      = 1.5
	capsRatioLimit = 0.3

	// CapsLabel marks results where the shouting bonus applied.
	CapsLabel = "excessive_caps"
)

type structuralPattern struct {
	label string
	re    *regexp.Regexp
}

var structuralPatterns = []structuralPattern{
	{"pattern:email", regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)},
	{"pattern:url", regexp.MustCompile(`https?://[^\s]+`)},
	{"pattern:long_digits", regexp.MustCompile(`\b\d{10,}\b`)},
	{"pattern:bank_code", regexp.MustCompile(`[A-Z]{2}\d{10}`)},
	{"pattern:handle_domain", regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w+\b`)},
}

type weightedPhrase struct {
	phrase string
	weight float64
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	phrases []weightedPhrase
}

// New builds a classifier from lex. The lexicon is validated first.
func New(lex Lexicon) (*Classifier, error) {
	if err := lex.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{}
	for _, category := range lex.Categories() {
		for phrase, weight := range lex[category] {
			c.phrases = append(c.phrases, weightedPhrase{phrase: normalizePhrase(phrase), weight: weight})
		}
	}
	// Stable order keeps the floating point sum identical between runs.
	sort.Slice(c.phrases, func(i, j int) bool { return c.phrases[i].phrase < c.phrases[j].phrase })
	return c, nil
}

// Default returns a classifier over DefaultLexicon.
func Default() *Classifier {
	c, err := New(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify scores text. It never fails: empty or garbage input yields a
// zero score with tier low.
func (c *Classifier) Classify(text string) models.ClassificationResult {
	text = strings.ToValidUTF8(text, "")
	if strings.TrimSpace(text) == "" {
		return models.ClassificationResult{RiskTier: models.RiskLow, MatchedKeywords: []string{}}
	}

	lower := strings.ToLower(text)
	score := 0.0
	var matched []string

	for _, p := range c.phrases {
		if strings.Contains(lower, p.phrase) {
			score += p.weight
			matched = append(matched, p.phrase)
		}
	}

	for _, p := range structuralPatterns {
		if p.re.MatchString(text) {
			score += patternBonus
			matched = append(matched, p.label)
		}
	}

	if upperRatio(text) > capsRatioLimit {
		score += capsBonus
		matched = append(matched, CapsLabel)
	}

	confidence := math.Round(math.Min(score/NormalizationScore, 1.0)*100) / 100

	return models.ClassificationResult{
		IsScam:          confidence >= ScamThreshold,
		Confidence:      confidence,
		MatchedKeywords: models.SetOf(matched...),
		RiskTier:        TierFor(confidence),
		RawScore:        score,
	}
}

// TierFor buckets a confidence value.
func TierFor(confidence float64) models.RiskTier {
	switch {
	case confidence >= 0.7:
		return models.RiskCritical
	case confidence >= 0.5:
		return models.RiskHigh
	case confidence >= ScamThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func upperRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}
	upper := 0
	for _, r := range text {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(total)
}
