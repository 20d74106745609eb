// Package outbox 实现事务发件箱：领域事件与状态变更同事务落库，再由 Relay 投递到 Kafka
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/pkg/db"
)

// 消息状态
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusDead    = "dead"
)

// Message 发件箱消息
type Message struct {
	ID            string `gorm:"size:36;primaryKey"`
	EventType     string `gorm:"size:100;index"`
	Topic         string `gorm:"size:200"`
	MessageKey    string `gorm:"size:100;index"`
	Payload       string `gorm:"type:text"`
	Status        string `gorm:"size:20;index:idx_outbox_dispatch,priority:1;default:pending"`
	Attempts      int
	LastError     string    `gorm:"size:500"`
	NextAttemptAt time.Time `gorm:"index:idx_outbox_dispatch,priority:2"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

// TableName 表名
func (Message) TableName() string {
	return "outbox_messages"
}

// Publisher 将事件写入发件箱；在 db.InTx 中调用时与业务写入同一事务
type Publisher struct {
	db          *db.DB
	topicPrefix string
}

// NewPublisher 创建发件箱写入器
func NewPublisher(d *db.DB, topicPrefix string) *Publisher {
	return &Publisher{db: d, topicPrefix: topicPrefix}
}

// Publish 写入一条事件，topic 为前缀加事件类型，key 决定分区
func (p *Publisher) Publish(ctx context.Context, eventType, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	now := time.Now().UTC()
	msg := Message{
		ID:            uuid.NewString(),
		EventType:     eventType,
		Topic:         p.topicPrefix + eventType,
		MessageKey:    key,
		Payload:       string(payload),
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.db.Conn(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("store %s event: %w", eventType, err)
	}
	return nil
}
