package models

import "strings"

// Sender identifies who wrote a message in a conversation.
type Sender string

const (
	SenderCounterparty Sender = "counterparty" // the suspected scammer
	SenderAgent        Sender = "agent"        // our honeypot persona
)

// ParseSender maps wire values to a Sender. Legacy clients send
// "scammer" and "user"; anything unknown is treated as the counterparty.
func ParseSender(s string) Sender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "agent", "user", "honeypot", "assistant":
		return SenderAgent
	default:
		return SenderCounterparty
	}
}

// Message is a single conversation turn. Immutable once appended to a session.
type Message struct {
	Sender    Sender `json:"sender" db:"sender"`
	Text      string `json:"text" db:"text"`
	Timestamp string `json:"timestamp" db:"timestamp"`
}

// Metadata describes where a conversation takes place.
type Metadata struct {
	Channel  string `json:"channel"`  // SMS, WhatsApp, Email, Chat
	Language string `json:"language"` // "auto" enables detection
	Locale   string `json:"locale"`
}

// WithDefaults fills empty metadata fields.
func (m Metadata) WithDefaults() Metadata {
	if m.Channel == "" {
		m.Channel = "SMS"
	}
	if m.Language == "" {
		m.Language = "English"
	}
	if m.Locale == "" {
		m.Locale = "IN"
	}
	return m
}
