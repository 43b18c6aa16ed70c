package notify

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram дублирует уведомления в чат капитана команды
type Telegram struct {
	bot    telegramSender
	chatID int64
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTelegram авторизует бота по токену
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	logger.Info("telegram notifier authorized", zap.String("bot", api.Self.UserName))
	return newTelegram(api, chatID, logger), nil
}

func newTelegram(bot telegramSender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, logger: logger}
}

// Notify отправляет сообщение в фоне, ошибки только логируются
func (t *Telegram) Notify(_ context.Context, n Notification) {
	text := n.Title
	if n.Message != "" {
		text += "\n" + n.Message
	}
	if n.Level == LevelError {
		text = "❌ " + text
	} else {
		text = "✅ " + text
	}

	msg := tgbotapi.NewMessage(t.chatID, text)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Warn("telegram notification failed", zap.Error(err))
		}
	}()
}

// Wait дожидается отправки начатых сообщений
func (t *Telegram) Wait() {
	t.wg.Wait()
}
