package models

import "time"

// Session is the aggregate state of one conversation.
type Session struct {
	ID                     string               `json:"sessionId"`
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
	Messages               []Message            `json:"conversation_history"`
	LatestClassification   ClassificationResult `json:"latest_classification"`
	CumulativeIntelligence IntelligenceRecord   `json:"extracted_intelligence"`
	Notes                  string               `json:"agent_notes"`
	MessageCount           int                  `json:"message_count"`
	Emitted                bool                 `json:"final_result_sent"`
	Metadata               Metadata             `json:"metadata"`
}

// NewSession initializes a session with empty state.
func NewSession(id string, meta Metadata, now time.Time) *Session {
	return &Session{
		ID:                     id,
		CreatedAt:              now,
		UpdatedAt:              now,
		Messages:               []Message{},
		LatestClassification:   ClassificationResult{RiskTier: RiskLow, MatchedKeywords: []string{}},
		CumulativeIntelligence: NewIntelligenceRecord(),
		Metadata:               meta.WithDefaults(),
	}
}

// Clone returns a deep copy safe to hand out of the store.
func (s *Session) Clone() Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	c.LatestClassification = s.LatestClassification.Clone()
	c.CumulativeIntelligence = s.CumulativeIntelligence.Clone()
	return c
}

// CounterpartyTurns counts messages sent by the counterparty.
func (s Session) CounterpartyTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Sender == SenderCounterparty {
			n++
		}
	}
	return n
}
