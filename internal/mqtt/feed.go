package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisefido-emergency/internal/generator"
	"wisefido-emergency/internal/models"

	"go.uber.org/zap"
)

// VitalsPayload 传感器上报的 JSON 负载
type VitalsPayload struct {
	HeartRate   int     `json:"heart_rate"`
	SpO2        int     `json:"spo2"`
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"` // Unix 秒，缺省时使用接收时间
}

// FeedSource 基于 MQTT 的读数来源
// 保存每个患者的最新读数；读数缺失或过期时交给 fallback（通常是模拟器）
type FeedSource struct {
	mu         sync.RWMutex
	latest     map[string]models.VitalReading
	fallback   generator.ReadingSource // 可为 nil
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewFeedSource 创建传感器读数来源
func NewFeedSource(fallback generator.ReadingSource, staleAfter time.Duration, logger *zap.Logger) *FeedSource {
	return &FeedSource{
		latest:     make(map[string]models.VitalReading),
		fallback:   fallback,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger,
	}
}

// Start 订阅主题并阻塞到 ctx 取消
func (f *FeedSource) Start(ctx context.Context, sub Subscriber, topic string, qos byte) error {
	if err := sub.Subscribe(topic, qos, f.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}
	f.logger.Info("Vitals feed started", zap.String("topic", topic))

	<-ctx.Done()

	if err := sub.Unsubscribe(topic); err != nil {
		f.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	f.logger.Info("Vitals feed stopped")
	return nil
}

// HandleMessage 处理一条传感器消息
// 主题格式: vitals/{patient_id}/reading
func (f *FeedSource) HandleMessage(topic string, payload []byte) error {
	patientID, err := patientIDFromTopic(topic)
	if err != nil {
		return err
	}

	var p VitalsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal vitals payload: %w", err)
	}

	// 设备时间不得晚于接收时间，时钟超前的设备否则会挡住后续消息且永不过期
	ts := f.now()
	if p.Timestamp > 0 {
		if device := time.Unix(p.Timestamp, 0); device.Before(ts) {
			ts = device
		}
	}
	reading := models.VitalReading{
		HeartRate:   p.HeartRate,
		SpO2:        p.SpO2,
		Temperature: p.Temperature,
		Timestamp:   ts,
	}

	f.mu.Lock()
	// 乱序到达的旧消息不覆盖新读数
	if prev, ok := f.latest[patientID]; !ok || !reading.Timestamp.Before(prev.Timestamp) {
		f.latest[patientID] = reading
	}
	f.mu.Unlock()

	f.logger.Debug("Vitals received",
		zap.String("patient_id", patientID),
		zap.Int("heart_rate", p.HeartRate),
		zap.Int("spo2", p.SpO2),
	)
	return nil
}

// Generate 返回患者最新的传感器读数
func (f *FeedSource) Generate(patient models.Patient) (models.VitalReading, error) {
	f.mu.RLock()
	reading, ok := f.latest[patient.ID]
	f.mu.RUnlock()

	if ok && (f.staleAfter <= 0 || f.now().Sub(reading.Timestamp) <= f.staleAfter) {
		return reading.Clone(), nil
	}
	if f.fallback != nil {
		return f.fallback.Generate(patient)
	}
	return models.VitalReading{}, fmt.Errorf("patient %s: %w", patient.ID, generator.ErrNoReading)
}

func patientIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return "", fmt.Errorf("unexpected vitals topic: %s", topic)
	}
	return parts[1], nil
}
