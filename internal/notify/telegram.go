package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramSender дублирует уведомления в чат клиники.
// Адрес получателя игнорируется, всё уходит в chatID.
type TelegramSender struct {
	bot    telegramAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramSender создаёт бота без запроса getMe, чтобы старт не зависел от Telegram
func NewTelegramSender(token string, chatID int64, logger *zap.Logger) (*TelegramSender, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSender{bot: b, chatID: chatID, logger: logger}, nil
}

func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   fmt.Sprintf("%s\n\n%s", msg.Subject, msg.Body),
	})
	if err != nil {
		return fmt.Errorf("telegram send message: %w", err)
	}

	s.logger.Info("Notification sent via Telegram",
		zap.Int64("chat_id", s.chatID),
		zap.String("to", msg.To))
	return nil
}

var _ Sender = (*TelegramSender)(nil)
