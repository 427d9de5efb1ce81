// Package api provides handlers for external APIs and interfaces
package api

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hydrowatch/riverdash/internal/entities"
	"github.com/hydrowatch/riverdash/internal/risk"
)

// TelegramNotifier sends tier-escalation alerts to a fixed chat. It is
// outbound-only; the service has no conversational surface.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier for the given bot token and chat.
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %v", err)
	}
	log.Printf("Authorized on Telegram account %s", bot.Self.UserName)

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// NotifyEscalation sends one alert message for a station entering warning
// or danger.
func (t *TelegramNotifier) NotifyEscalation(station entities.Station, assessment risk.Assessment, level float64) error {
	icon := "⚠️"
	if assessment.Level == entities.RiskDanger {
		icon = "🚨"
	}

	text := fmt.Sprintf("%s %s (%s) entered %s tier\n", icon, station.Name, station.Location, assessment.Level) +
		fmt.Sprintf("💧 Water Level: %.2f m (danger at %.2f m)\n", level, station.Thresholds.Danger) +
		fmt.Sprintf("📈 Trend: %s (%.2f m/h)\n", assessment.Trend, assessment.ChangeRatePerHour) +
		fmt.Sprintf("🧭 Risk score: %.0f/100", assessment.Score)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send alert: %v", err)
	}
	log.Printf("Sent %s escalation alert for station %s", assessment.Level, station.ID)
	return nil
}
