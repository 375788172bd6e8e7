// Package notify 升级通知的投递（日志、Redis Streams、Webhook）
package notify

import (
	"context"
	"errors"

	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// Notifier 投递一批通知
type Notifier interface {
	Notify(ctx context.Context, notifications []models.Notification) error
}

// LogNotifier 写入结构化日志
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notifications []models.Notification) error {
	for _, item := range notifications {
		n.logger.Warn("Responder notified",
			zap.String("patient_id", item.PatientID),
			zap.String("role", item.Role),
			zap.Int("level", int(item.Level)),
			zap.String("message", item.Message),
		)
	}
	return nil
}

// Multi 依次调用多个 Notifier；单个失败只记录日志，不影响其他
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, logger: logger}
}

// Notify 返回所有失败的合并错误
func (m *Multi) Notify(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, notifications); err != nil {
			m.logger.Error("Failed to deliver notifications",
				zap.Int("count", len(notifications)),
				zap.Error(err),
			)
			errs = append(errs, err)
			// 继续投递其他渠道
		}
	}
	return errors.Join(errs...)
}
