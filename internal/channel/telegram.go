package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseTelegram extracts the inbound customer message from a bot webhook
// update. Updates without message text yield (nil, nil).
func ParseTelegram(body []byte) (*Inbound, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("parse telegram update: %w", err)
	}
	if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
		return nil, nil
	}
	return &Inbound{
		Platform: "telegram",
		SenderID: strconv.FormatInt(update.Message.Chat.ID, 10),
		Message:  update.Message.Text,
	}, nil
}

// TelegramSender delivers replies through the bot API. The bot is built once
// in the constructor; Send runs from concurrent background tasks and only
// reads it.
type TelegramSender struct {
	logger *slog.Logger
	bot    *tgbotapi.BotAPI
}

// NewTelegramSender builds the sender. A missing or rejected token leaves the
// sender disabled; Send then reports the misconfiguration.
func NewTelegramSender(log *slog.Logger, token string) *TelegramSender {
	if log == nil {
		log = slog.Default()
	}
	s := &TelegramSender{
		logger: log.With(slog.String("service", "telegram_sender")),
	}
	if token == "" {
		return s
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		s.logger.Warn("telegram sender disabled", slog.Any("error", err))
		return s
	}
	s.bot = bot
	return s
}

func (s *TelegramSender) Send(ctx context.Context, recipientID, text string, images []string) error {
	if s.bot == nil {
		return fmt.Errorf("telegram sender not configured")
	}
	bot := s.bot

	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram recipient %q: %w", recipientID, err)
	}

	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	for _, image := range images {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(image))
		if _, err := bot.Send(photo); err != nil {
			return fmt.Errorf("telegram send photo: %w", err)
		}
	}
	return nil
}
