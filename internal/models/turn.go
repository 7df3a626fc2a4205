package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TurnRequest is the inbound payload of one conversation turn.
type TurnRequest struct {
	SessionID           string    `json:"sessionId"`
	Message             Message   `json:"message"`
	ConversationHistory []Message `json:"conversationHistory"`
	Metadata            *Metadata `json:"metadata,omitempty"`
}

// TurnResponse is returned to the caller of a turn.
type TurnResponse struct {
	Status                string             `json:"status"`
	SessionID             string             `json:"sessionId"`
	Reply                 string             `json:"reply"`
	ScamDetected          bool               `json:"scam_detected"`
	Confidence            float64            `json:"confidence"`
	RiskTier              RiskTier           `json:"risk_tier"`
	ExtractedIntelligence IntelligenceRecord `json:"extracted_intelligence"`
	MessageCount          int                `json:"message_count"`
	CallbackSent          bool               `json:"callback_sent"`
	ShouldContinue        bool               `json:"should_continue"`
}

// Validate checks the fields the pipeline cannot work without.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.Message.Text) == "" {
		return fmt.Errorf("%w: message text is required", ErrValidation)
	}
	return nil
}

// UnmarshalJSON accepts the payload shapes older clients send: snake_case
// keys, requestId in place of sessionId, and a bare string message.
func (r *TurnRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for _, key := range []string{"sessionId", "session_id", "sessionID", "requestId", "request_id"} {
		if v, ok := raw[key]; ok {
			var id string
			if err := json.Unmarshal(v, &id); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			r.SessionID = id
			break
		}
	}

	if v, ok := raw["message"]; ok {
		msg, err := decodeMessage(v)
		if err != nil {
			return fmt.Errorf("message: %w", err)
		}
		r.Message = msg
	}

	for _, key := range []string{"conversationHistory", "conversation_history"} {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		r.ConversationHistory = make([]Message, 0, len(items))
		for _, item := range items {
			msg, err := decodeMessage(item)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			r.ConversationHistory = append(r.ConversationHistory, msg)
		}
		break
	}

	if v, ok := raw["metadata"]; ok && string(v) != "null" {
		var meta Metadata
		if err := json.Unmarshal(v, &meta); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		r.Metadata = &meta
	}
	return nil
}

func decodeMessage(data json.RawMessage) (Message, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return Message{Sender: SenderCounterparty, Text: text, Timestamp: now}, nil
	}

	var wire struct {
		Sender    string          `json:"sender"`
		Text      *string         `json:"text"`
		Message   *string         `json:"message"`
		Content   *string         `json:"content"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, err
	}

	msg := Message{Sender: ParseSender(wire.Sender), Timestamp: now}
	switch {
	case wire.Text != nil:
		msg.Text = *wire.Text
	case wire.Message != nil:
		msg.Text = *wire.Message
	case wire.Content != nil:
		msg.Text = *wire.Content
	}

	// Timestamps arrive as ISO strings or epoch milliseconds.
	if len(wire.Timestamp) > 0 && string(wire.Timestamp) != "null" {
		var ts string
		if err := json.Unmarshal(wire.Timestamp, &ts); err == nil {
			if ts != "" {
				msg.Timestamp = ts
			}
		} else {
			var ms int64
			if err := json.Unmarshal(wire.Timestamp, &ms); err != nil {
				return Message{}, fmt.Errorf("timestamp: %w", err)
			}
			msg.Timestamp = time.UnixMilli(ms).UTC().Format(time.RFC3339)
		}
	}
	return msg, nil
}
