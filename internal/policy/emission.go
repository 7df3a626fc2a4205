package policy

import "honeypot/internal/models"

const (
	// MinMessagesForEmission is the conversation length below which no
	// report is sent.
	MinMessagesForEmission = 3
	// KeywordThreshold is the number of suspicious keywords that must be
	// exceeded to report without a hard indicator.
	KeywordThreshold = 3
)

// ShouldEmit reports whether s carries enough evidence to be reported.
// It is true at most once per session: after MarkEmitted it stays false.
func ShouldEmit(s models.Session) bool {
	if s.Emitted || !s.LatestClassification.IsScam {
		return false
	}
	if s.MessageCount < MinMessagesForEmission {
		return false
	}
	intel := s.CumulativeIntelligence
	return intel.HasIndicators() || len(intel.SuspiciousKeywords) > KeywordThreshold
}
