// Package notify delivers best-effort operational alerts. Failures are
// logged and swallowed so an alert can never break the reply path.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vinchat/vinchat/internal/config"
)

// Notifier raises an alert when a reply had no authoritative answer.
type Notifier interface {
	NotifyMissingInfo(ctx context.Context, sessionName, question string)
}

// Telegram sends alerts to a fixed admin chat.
type Telegram struct {
	logger *slog.Logger
	chatID int64
	bot    *tgbotapi.BotAPI
}

// NewTelegram builds the notifier. A missing token yields a disabled notifier
// rather than an error; alerting is optional.
func NewTelegram(log *slog.Logger, cfg config.NotifyConfig) *Telegram {
	if log == nil {
		log = slog.Default()
	}
	n := &Telegram{
		logger: log.With(slog.String("service", "notify")),
		chatID: cfg.TelegramChatID,
	}
	if cfg.TelegramToken == "" {
		return n
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		n.logger.Warn("telegram notifier disabled", slog.Any("error", err))
		return n
	}
	n.bot = bot
	return n
}

func (n *Telegram) NotifyMissingInfo(_ context.Context, sessionName, question string) {
	if n.bot == nil || n.chatID == 0 {
		return
	}
	text := fmt.Sprintf("Phiên %s hỏi nhưng chưa có thông tin chính thức:\n%s", sessionName, question)
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		n.logger.Warn("missing-info notify failed",
			slog.String("session", sessionName),
			slog.Any("error", err))
	}
}
