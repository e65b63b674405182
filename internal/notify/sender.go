package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message письмо или сообщение для отправки
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender отправляет уведомление, реализации взаимозаменяемы (SES, SendGrid, Telegram)
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// StubSender только пишет в лог
type StubSender struct {
	logger *zap.Logger
}

func NewStubSender(logger *zap.Logger) *StubSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("Stub sender: would send notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

var _ Sender = (*StubSender)(nil)
