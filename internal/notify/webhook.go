package notify

import (
	"context"
	"fmt"
	"time"

	"wisefido-emergency/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPayload Webhook 请求体
type WebhookPayload struct {
	Count         int                   `json:"count"`
	Notifications []models.Notification `json:"notifications"`
	SentAt        time.Time             `json:"sent_at"`
}

// WebhookNotifier 通过 HTTP POST 推送到外部寻呼系统
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 推送
func NewWebhookNotifier(url string, retries int, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	payload := WebhookPayload{
		Count:         len(notifications),
		Notifications: notifications,
		SentAt:        time.Now().UTC(),
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to call notification webhook: %w", err)
	}
	if resp.IsError() {
		n.logger.Error("Notification webhook returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("notification webhook error: status %d", resp.StatusCode())
	}

	n.logger.Debug("Notifications delivered to webhook",
		zap.Int("count", len(notifications)),
	)
	return nil
}
