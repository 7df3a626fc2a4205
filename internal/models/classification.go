package models

// RiskTier is a coarse bucket derived from classifier confidence.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// ClassificationResult is produced fresh for every scored message and never mutated.
type ClassificationResult struct {
	IsScam          bool     `json:"is_scam"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
	RiskTier        RiskTier `json:"risk_tier"`
	RawScore        float64  `json:"raw_score"`
}

// Clone returns a copy that shares no slices with r.
func (r ClassificationResult) Clone() ClassificationResult {
	r.MatchedKeywords = append([]string(nil), r.MatchedKeywords...)
	return r
}
