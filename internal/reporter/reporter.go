// Package reporter delivers final session reports to an external
// collector, with a local file fallback and an optional operator alert.
package reporter

import (
	"context"
	"time"

	"honeypot/internal/models"
)

// Payload is the report sent for a session that passed the emission gate.
type Payload struct {
	SessionID              string                    `json:"sessionId"`
	ScamDetected           bool                      `json:"scamDetected"`
	TotalMessagesExchanged int                       `json:"totalMessagesExchanged"`
	ExtractedIntelligence  models.IntelligenceRecord `json:"extractedIntelligence"`
	AgentNotes             string                    `json:"agentNotes"`
}

// Result describes the outcome of one delivery.
type Result struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code,omitempty"`
	Response   string    `json:"response,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sender delivers a payload somewhere.
type Sender interface {
	Send(ctx context.Context, p Payload) (*Result, error)
}

// Notifier is told about reports that were delivered.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

// NewPayload builds the report for s.
func NewPayload(s models.Session) Payload {
	return Payload{
		SessionID:              s.ID,
		ScamDetected:           s.LatestClassification.IsScam,
		TotalMessagesExchanged: s.MessageCount,
		ExtractedIntelligence:  s.CumulativeIntelligence.Clone(),
		AgentNotes:             s.Notes,
	}
}
