// Package mq 提供 Kafka 生产者与死信队列
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/storefront/pkg/logger"
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int
}

// Message 待发送的消息
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer}, nil
}

// Send 发送单条消息，相同 key 落在同一分区以保证顺序
func (kp *KafkaProducer) Send(ctx context.Context, msg Message) error {
	km := kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := kp.writer.WriteMessages(ctx, km); err != nil {
		logger.Error(ctx, "Failed to send Kafka message", "topic", msg.Topic, "key", msg.Key, "error", err)
		return err
	}

	logger.Debug(ctx, "Kafka message sent", "topic", msg.Topic, "key", msg.Key)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// Sender 消息发送者
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeadLetterQueue 死信队列
type DeadLetterQueue struct {
	sender Sender
	topic  string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(sender Sender, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{sender: sender, topic: topic}
}

// Send 将无法投递的消息连同失败原因转入死信主题
func (dlq *DeadLetterQueue) Send(ctx context.Context, original Message, reason string, cause error) error {
	body, err := json.Marshal(map[string]any{
		"original_topic":    original.Topic,
		"original_key":      original.Key,
		"original_value":    string(original.Value),
		"failure_reason":    reason,
		"failure_error":     cause.Error(),
		"failure_timestamp": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return dlq.sender.Send(ctx, Message{Topic: dlq.topic, Key: original.Key, Value: body})
}
