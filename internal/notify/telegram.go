// Package notify implements AuditSink variants that fan audit events out
// to external channels. TelegramSink follows the teacher's bot/telegram.go
// send-formatted-message idiom, generalized from trade alerts to the four
// audit event kinds.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/optionpulse/signalengine/internal/types"
)

// TelegramSink posts a formatted line per audit event to a single chat.
// Construct via NewTelegramSink; NewTelegramSink returns a no-op sink when
// token or chatID is empty so deployments without Telegram configured
// don't need a separate code path.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink builds a sink, or a disabled no-op if unconfigured.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	if token == "" || chatID == 0 {
		return &TelegramSink{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Notify(e types.AuditLogEntry) {
	if s.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(s.chatID, format(e))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(msg); err != nil {
		log.Warn().Err(err).Str("event_type", string(e.EventType)).Msg("telegram notify failed")
	}
}

func format(e types.AuditLogEntry) string {
	switch e.EventType {
	case types.AuditSignalReceived:
		return fmt.Sprintf("📡 Signal received: *%s* (id `%s`)", e.Symbol, e.SignalID)
	case types.AuditDecisionMade:
		return fmt.Sprintf("⚖️ Decision: *%s* %s on %s (id `%s`)", e.Decision, e.DecisionType, e.Symbol, e.SignalID)
	case types.AuditTradeOpened:
		return fmt.Sprintf("🟢 Trade opened: *%s* (position `%s`)", e.Symbol, e.PositionID)
	case types.AuditTradeClosed:
		return fmt.Sprintf("🔴 Trade closed: *%s* (position `%s`)", e.Symbol, e.PositionID)
	default:
		return fmt.Sprintf("Event %s on %s", e.EventType, e.Symbol)
	}
}
