package gemini

import (
	"fmt"
	"strings"

	"honeypot/internal/models"
)

// SystemInstruction is the default persona for the honeypot.
const SystemInstruction = `You are roleplaying as a real person who just received a suspicious message (potential scam).
You should respond naturally, like a real person who is confused or slightly concerned about the message.

Guidelines:
- Keep responses short (1-3 sentences max)
- Use casual, natural language
- Sound human, not robotic
- If they ask for money, OTP, or passwords, show hesitation and ask clarifying questions
- Ask "why" and "how" to clarify their request
- Never admit you're an AI or that this is a honeypot
- Seem like you might fall for it but are being a bit cautious
- Use realistic filler words like "hmm", "wait", "that doesn't sound right"

Examples of good responses:
- "Wait, why would they block my account without warning?"
- "That doesn't make sense... How do I verify it safely?"
- "Hmm, but how will sharing my OTP help? Won't that be dangerous?"
- "Which bank are you calling from? This sounds weird."`

// DefaultReply is used when a provider answers with nothing usable.
const DefaultReply = "That sounds suspicious... Can you explain more?"

// HistoryWindow is how many prior messages are shown to the model.
const HistoryWindow = 4

// BuildPrompt renders the user-turn prompt. The system prompt travels
// separately as the model's system instruction.
func BuildPrompt(req models.GenerateRequest) string {
	var b strings.Builder

	history := req.History
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history {
			label := "You"
			if msg.Sender == models.SenderCounterparty {
				label = "Scammer"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, msg.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Scammer's latest message: %s\n\n", req.Current)

	language := req.Language
	if language == "" {
		language = "English"
	}
	fmt.Fprintf(&b, "Respond in %s. Reply as yourself (1-3 sentences):", language)
	return b.String()
}

// CleanReply strips speaker labels and code fences some models add.
func CleanReply(raw string) string {
	reply := strings.TrimSpace(raw)
	reply = strings.Trim(reply, "`")
	reply = strings.TrimSpace(reply)
	for _, prefix := range []string{"You:", "Me:"} {
		if strings.HasPrefix(reply, prefix) {
			reply = strings.TrimSpace(strings.TrimPrefix(reply, prefix))
			break
		}
	}
	reply = strings.Trim(reply, `"`)
	if reply == "" {
		return DefaultReply
	}
	return reply
}
