package reporter

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"honeypot/internal/models"
)

// SessionLookup resolves a session id for the /session bot command.
type SessionLookup func(id string) (models.Session, error)

// TelegramNotifier alerts an operator chat about delivered reports and
// answers simple status commands from that chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	lookup SessionLookup
	logger *zap.Logger
}

// NewTelegramNotifier returns nil, nil when token is empty.
func NewTelegramNotifier(token string, chatID int64, lookup SessionLookup, logger *zap.Logger) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID, lookup, logger)
}

// NewTelegramNotifierWithEndpoint talks to a custom Bot API endpoint,
// formatted like tgbotapi.APIEndpoint.
func NewTelegramNotifierWithEndpoint(token, endpoint string, chatID int64, lookup SessionLookup, logger *zap.Logger) (*TelegramNotifier, error) {
	if token == "" {
		logger.Info("Telegram notifier is disabled (token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &TelegramNotifier{
		api:    botAPI,
		chatID: chatID,
		lookup: lookup,
		logger: logger,
	}, nil
}

// Notify sends a short summary of p to the operator chat.
func (n *TelegramNotifier) Notify(_ context.Context, p Payload) error {
	if n == nil {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatAlert(p))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Info("Operator notified",
		zap.Int64("chat_id", n.chatID),
		zap.String("session_id", p.SessionID))
	return nil
}

// FormatAlert renders the operator message for p.
func FormatAlert(p Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 Scam report sent\n\nSession: %s\nMessages: %d\n", p.SessionID, p.TotalMessagesExchanged)

	intel := p.ExtractedIntelligence
	for _, field := range []struct {
		label  string
		values []string
	}{
		{"Bank accounts", intel.BankAccounts},
		{"UPI IDs", intel.UPIIDs},
		{"Links", intel.PhishingLinks},
		{"Phones", intel.PhoneNumbers},
	} {
		if len(field.values) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", field.label, strings.Join(field.values, ", "))
		}
	}
	if p.AgentNotes != "" {
		fmt.Fprintf(&b, "\n📝 %s", p.AgentNotes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Run answers /help and /session <id> commands until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context) error {
	if n == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := n.api.GetUpdatesChan(u)

	n.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Telegram bot shutting down...")
			n.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.IsCommand() {
				n.handleCommand(update.Message)
			}
		}
	}
}

func (n *TelegramNotifier) handleCommand(message *tgbotapi.Message) {
	if message.Chat.ID != n.chatID {
		n.logger.Warn("Ignoring command from unknown chat", zap.Int64("chat_id", message.Chat.ID))
		return
	}

	switch message.Command() {
	case "session":
		n.reply(message.Chat.ID, n.describeSession(strings.TrimSpace(message.CommandArguments())))
	case "help", "start":
		n.reply(message.Chat.ID, "/session <id> - show a session's verdict and intelligence")
	default:
		n.reply(message.Chat.ID, "Unknown command. Use /help.")
	}
}

func (n *TelegramNotifier) describeSession(id string) string {
	if id == "" {
		return "Usage: /session <id>"
	}
	if n.lookup == nil {
		return "Session lookup is not available"
	}
	s, err := n.lookup(id)
	if err != nil {
		return fmt.Sprintf("Session %s: %v", id, err)
	}
	return fmt.Sprintf("Session %s\nScam: %t (%.0f%%, %s)\nMessages: %d\nReported: %t\n%s",
		s.ID,
		s.LatestClassification.IsScam,
		s.LatestClassification.Confidence*100,
		s.LatestClassification.RiskTier,
		s.MessageCount,
		s.Emitted,
		s.Notes)
}

func (n *TelegramNotifier) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
