// Package notify доставляет пользователю уведомления об успехе и ошибках.
// Доставка fire-and-forget: результат не влияет на ход операций.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message,omitempty"`
	TeamID  string    `json:"teamId,omitempty"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success и Error собирают уведомление с текущим временем
func Success(title, message, teamID string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message, TeamID: teamID, At: time.Now().UTC()}
}

func Error(title string, err error, teamID string) Notification {
	n := Notification{Level: LevelError, Title: title, TeamID: teamID, At: time.Now().UTC()}
	if err != nil {
		n.Message = err.Error()
	}
	return n
}

// Log пишет уведомления в лог
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.String("team_id", n.TeamID),
	}
	if n.Level == LevelError {
		l.logger.Warn("notification", fields...)
		return
	}
	l.logger.Info("notification", fields...)
}

// Multi рассылает уведомление всем получателям по очереди
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// Discard отбрасывает уведомления
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}
