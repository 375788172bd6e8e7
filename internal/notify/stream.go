package notify

import (
	"context"

	"wisefido-emergency/internal/models"
)

// NotificationPublisher 发布通知到消息流（cache.StreamPublisher 实现）
type NotificationPublisher interface {
	PublishNotifications(ctx context.Context, notifications []models.Notification) error
}

// StreamNotifier 写入 Redis Streams，供下游寻呼服务消费
type StreamNotifier struct {
	publisher NotificationPublisher
}

func NewStreamNotifier(publisher NotificationPublisher) *StreamNotifier {
	return &StreamNotifier{publisher: publisher}
}

func (n *StreamNotifier) Notify(ctx context.Context, notifications []models.Notification) error {
	return n.publisher.PublishNotifications(ctx, notifications)
}
