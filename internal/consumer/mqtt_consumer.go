package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqttcommon "smart-industry/common/mqtt"
	"smart-industry/internal/config"
	"smart-industry/internal/domain"
	"smart-industry/internal/metrics"

	"go.uber.org/zap"
)

// Processor 处理一条原始上报（由 service.IngestService 实现）
type Processor interface {
	Process(ctx context.Context, raw map[string]any) (*domain.RiskVerdict, error)
}

// MQTTConsumer MQTT 传感器数据消费者
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqttcommon.Client
	processor  Processor
	metrics    *metrics.Metrics
	logger     *zap.Logger

	ctx context.Context
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	processor Processor,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		processor:  processor,
		metrics:    m,
		logger:     logger,
		ctx:        context.Background(),
	}
}

// Start 订阅传感器主题，阻塞直到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	c.ctx = ctx
	topic := c.config.Ingest.SensorTopic

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to sensor topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅（连接由调用方关闭）
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.Ingest.SensorTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 处理一条 MQTT 消息
// 主题格式: sensors/{device_id}/data；payload 中缺少 device_id 时取主题中的设备标识
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		c.metrics.IncRejected("malformed")
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if raw == nil {
		// payload 为 JSON null
		c.metrics.IncRejected("malformed")
		return fmt.Errorf("failed to process sensor message: %w", &domain.ValidationError{Reason: "Empty payload"})
	}

	if _, ok := raw["device_id"]; !ok {
		if deviceID := deviceFromTopic(topic); deviceID != "" {
			raw["device_id"] = deviceID
		}
	}

	verdict, err := c.processor.Process(c.ctx, raw)
	if err != nil {
		return fmt.Errorf("failed to process sensor message: %w", err)
	}

	c.metrics.IncIngested("mqtt")
	c.logger.Debug("Processed MQTT sensor message",
		zap.String("worker_id", verdict.WorkerID),
		zap.String("risk_level", verdict.Final),
	)
	return nil
}

// deviceFromTopic 取主题第二段作为设备标识
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
