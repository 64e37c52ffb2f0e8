// Package notifier delivers outage and recovery alerts to Telegram
package notifier

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// Config represents alerting configuration
type Config struct {
	BotToken string
	ChatID   int64
	// Endpoint overrides the Telegram API endpoint (for testing)
	Endpoint string
}

// TelegramNotifier sends pair status alerts. Delivery is best effort:
// failures are logged and never bubble up into the check cycle.
type TelegramNotifier struct {
	config Config
	logger logger.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// New creates a Telegram notifier. The bot session is established
// lazily on first send so a Telegram outage cannot block monitor
// startup.
func New(config Config, log logger.Logger) *TelegramNotifier {
	if config.Endpoint == "" {
		config.Endpoint = tgbotapi.APIEndpoint
	}
	return &TelegramNotifier{
		config: config,
		logger: log,
	}
}

// NotifyOutage reports a failed check for a pair
func (n *TelegramNotifier) NotifyOutage(pair types.Pair, message string, attempt int, nextCheck time.Duration) {
	attemptInfo := ""
	if attempt > 0 {
		attemptInfo = fmt.Sprintf(" (recovery attempt #%d)", attempt)
	}

	text := fmt.Sprintf(
		"**%s link status:** ⚠️ Degraded%s\n**Message:** %s\n**Next check:** in %.0fs",
		pair, attemptInfo, message, nextCheck.Seconds())

	n.send(text)
}

// NotifyRecovery reports a pair coming back up
func (n *TelegramNotifier) NotifyRecovery(pair types.Pair, message string, attempts int, nextCheck time.Duration) {
	attemptInfo := ""
	if attempts > 0 {
		attemptInfo = fmt.Sprintf(" (recovery attempt #%d)", attempts)
	}

	text := fmt.Sprintf(
		"**%s link status:** ✅ Recovered%s\n**Message:** %s\n**Next check:** in %.0fs",
		pair, attemptInfo, message, nextCheck.Seconds())

	n.send(text)
}

// Private methods

func (n *TelegramNotifier) send(text string) {
	if n.config.BotToken == "" || n.config.ChatID == 0 {
		n.logger.Error("telegram configuration missing, dropping alert")
		return
	}

	bot, err := n.getBot()
	if err != nil {
		n.logger.Error("failed to reach telegram", logger.WithField("error", err))
		return
	}

	msg := tgbotapi.NewMessage(n.config.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := bot.Send(msg); err != nil {
		n.logger.Error("failed to send telegram alert", logger.WithField("error", err))
	}
}

func (n *TelegramNotifier) getBot() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bot != nil {
		return n.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(n.config.BotToken, n.config.Endpoint)
	if err != nil {
		return nil, err
	}

	n.bot = bot
	return bot, nil
}
