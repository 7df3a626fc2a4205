// Package policy decides how the honeypot persona answers and when a
// conversation has produced enough evidence to report.
package policy

import "strings"

const (
	// MaxMessages caps how long a conversation is kept going.
	MaxMessages = 10

	earlyStageMax  = 2
	middleStageMax = 5
)

// rule maps any of a set of substrings to a canned reply.
type rule struct {
	words []string
	reply string
}

type stage struct {
	rules    []rule
	fallback string
}

var (
	early = stage{
		rules: []rule{
			{[]string{"blocked", "suspended", "locked", "freeze", "expiry"}, "What do you mean it's blocked? When did this happen?"},
			{[]string{"mobile number", "upi id", "account number", "pin", "otp"}, "Why would you need that information?"},
			{[]string{"verify", "confirm", "update", "kyc"}, "How do I verify it? Is this really from my bank?"},
			{[]string{"reward", "cashback", "refund", "credit", "bonus"}, "I don't remember receiving any reward. How much is it?"},
			{[]string{"urgent", "immediately", "now", "asap", "expire"}, "Why is it so urgent? Can't this wait?"},
		},
		fallback: "Sorry, I didn't understand. Can you explain?",
	}
	middle = stage{
		rules: []rule{
			{[]string{"qr code", "scan", "click", "link", "download"}, "How do I know this is safe? What will happen when I scan it?"},
			{[]string{"pin", "password", "cvv", "otp"}, "But won't sharing that be risky? How is this secure?"},
			{[]string{"upi", "bank account", "payment", "transfer"}, "Okay, but how exactly does this work? What will I need to do?"},
			{[]string{"confirm", "approve", "accept"}, "What exactly will I be confirming? What happens next?"},
			{[]string{"receive", "collect", "process", "credit"}, "So I just need to do this and the money comes to my account?"},
		},
		fallback: "Hmm, okay. What do I need to do exactly?",
	}
	late = stage{
		rules: []rule{
			{[]string{"done", "received", "got", "confirm", "proceed"}, "What happens now? When will I get the money?"},
			{[]string{"enter", "input", "type", "provide"}, "Okay, I'm ready. What should I enter?"},
			{[]string{"wait", "process", "loading", "please"}, "How long will this take?"},
		},
		fallback: "Alright, I understand. Then what?",
	}
)

// NextReply returns a deterministic persona reply. turnCount is the number
// of counterparty messages that preceded text in the conversation.
func NextReply(turnCount int, text string) string {
	s := late
	switch {
	case turnCount <= earlyStageMax:
		s = early
	case turnCount <= middleStageMax:
		s = middle
	}

	lower := strings.ToLower(text)
	for _, r := range s.rules {
		if containsAny(lower, r.words) {
			return r.reply
		}
	}
	return s.fallback
}

// ShouldContinue reports whether the persona should keep the conversation
// going. Below the hard cap every conversation continues: actionable
// requests, short exchanges and everything else alike.
func ShouldContinue(_ string, messageCount int) bool {
	return messageCount < MaxMessages
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
