package mqtt

import (
	"fmt"
	"sync"
	"time"

	"wisefido-emergency/internal/config"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

// Subscriber 订阅能力（FeedSource 依赖它，便于测试替换）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client 传感器 broker 连接
// CleanSession 下重连会丢失订阅，OnConnect 时按记录重新订阅
type Client struct {
	client pahomqtt.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 连接 broker
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.Warn("Sensor broker connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = pahomqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return c, nil
}

// Subscribe 订阅并记录，重连后自动恢复
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := c.subscribe(topic, qos, handler); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return nil
}

func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			// 单条坏消息不影响订阅
			c.logger.Warn("Dropped sensor message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()

	if token := c.client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}
	return nil
}

// Disconnect 断开连接（最多等待 250ms 发送完成）
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) onConnect(_ pahomqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.subscribe(topic, s.qos, s.handler); err != nil {
			c.logger.Error("Failed to restore subscription", zap.String("topic", topic), zap.Error(err))
			continue
		}
		c.logger.Info("Subscription restored", zap.String("topic", topic))
	}
}
