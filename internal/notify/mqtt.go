package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"heartguard-alerts/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// tokenPublisher is the part of mqtt.Client the publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher MQTT 状态变更发布
type MQTTPublisher struct {
	client  tokenPublisher
	conn    mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *zap.Logger
}

// NewMQTTPublisher 连接 broker 并创建发布者
func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	p := newMQTTPublisher(client, byte(cfg.QoS), logger)
	p.conn = client
	return p, nil
}

func newMQTTPublisher(client tokenPublisher, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, qos: qos, timeout: 5 * time.Second, logger: logger}
}

var _ Publisher = (*MQTTPublisher)(nil)

func (p *MQTTPublisher) PublishTransition(ctx context.Context, e AlertTransition) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal alert transition: %w", err)
	}
	topic := e.Topic()
	token := p.client.Publish(topic, p.qos, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	p.logger.Debug("Published alert transition",
		zap.String("topic", topic),
		zap.String("to", string(e.To)),
	)
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() {
	if p.conn != nil {
		p.conn.Disconnect(250) // 250ms等待时间
	}
}
