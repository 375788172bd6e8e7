package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Redis Streams 名称
const (
	StreamEscalations   = "emergency:escalations"
	StreamNotifications = "emergency:notifications"
)

// defaultStreamMaxLen 每个 stream 保留的近似长度
const defaultStreamMaxLen = 10000

// PublishJSONToStream 发布 JSON 消息到 Redis Streams（data + timestamp 两个字段）
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: defaultStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}

// StreamPublisher 升级事件与通知的 Redis Streams 发布者
type StreamPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStreamPublisher 创建发布者
func NewStreamPublisher(client *redis.Client, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		logger: logger,
	}
}

// PublishTransition 发布一次级别变化
func (p *StreamPublisher) PublishTransition(ctx context.Context, tr *models.Transition) error {
	if tr == nil {
		return nil
	}
	id, err := PublishJSONToStream(ctx, p.client, StreamEscalations, tr)
	if err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	p.logger.Debug("Transition published",
		zap.String("stream", StreamEscalations),
		zap.String("message_id", id),
		zap.String("patient_id", tr.PatientID),
	)
	return nil
}

// PublishNotifications 发布通知（每条一个消息）
func (p *StreamPublisher) PublishNotifications(ctx context.Context, notifications []models.Notification) error {
	for _, n := range notifications {
		if _, err := PublishJSONToStream(ctx, p.client, StreamNotifications, n); err != nil {
			return fmt.Errorf("failed to publish notification: %w", err)
		}
	}
	return nil
}
