// Package domain 订单领域模型
package domain

import (
	"context"
	"time"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order 订单；支付后不可变。payment_session_id 唯一，一个结账会话至多对应一个订单
type Order struct {
	ID                 string      `gorm:"size:36;primaryKey" json:"id"`
	OrderNumber        string      `gorm:"size:32;uniqueIndex;not null" json:"orderNumber"`
	UserID             string      `gorm:"size:64;index;not null" json:"userId"`
	CartID             string      `gorm:"size:36;not null" json:"cartId"`
	ShippingAddressID  string      `gorm:"size:36;not null" json:"shippingAddressId"`
	TotalAmountInCents int64       `gorm:"not null" json:"totalAmountInCents"`
	Currency           string      `gorm:"size:8;not null" json:"currency"`
	Status             OrderStatus `gorm:"size:16;index;not null" json:"status"`
	PaymentSessionID   *string     `gorm:"size:255;uniqueIndex" json:"paymentSessionId"`
	// 会话已完成、异步支付（如 boleto）尚未到账；此类订单不参与超时清理
	AwaitingPaymentAt *time.Time  `json:"awaitingPaymentAt,omitempty"`
	PaidAt            *time.Time  `json:"paidAt,omitempty"`
	CancelledAt       *time.Time  `json:"cancelledAt,omitempty"`
	CreatedAt         time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	Items             []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// IsPaid 是否已支付
func (o *Order) IsPaid() bool { return o.Status == OrderStatusPaid }

// OrderItem 下单时刻的商品与价格快照
type OrderItem struct {
	ID               string    `gorm:"size:36;primaryKey" json:"id"`
	OrderID          string    `gorm:"size:36;index;not null" json:"orderId"`
	ProductVariantID string    `gorm:"size:36;not null" json:"variantId"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	ImageURL         string    `gorm:"size:1024" json:"imageUrl,omitempty"`
	Quantity         int64     `gorm:"not null" json:"quantity"`
	PriceInCents     int64     `gorm:"not null" json:"priceInCents"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (OrderItem) TableName() string { return "order_items" }

// ProcessedWebhookEvent 已处理的 webhook 事件，用于去重与审计
type ProcessedWebhookEvent struct {
	EventID     string `gorm:"size:255;primaryKey"`
	EventType   string `gorm:"size:128;not null"`
	SessionID   string `gorm:"size:255;index"`
	ProcessedAt time.Time
}

func (ProcessedWebhookEvent) TableName() string { return "processed_webhook_events" }

// OrderRepository 订单仓储
type OrderRepository interface {
	// Create 写入订单及其商品行
	Create(ctx context.Context, order *Order) error
	// AttachPaymentSession 仅当订单尚无会话时写入，返回是否写入
	AttachPaymentSession(ctx context.Context, orderID, sessionID string) (bool, error)
	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, orderID string) (*Order, error)
	// GetByPaymentSession 不存在时返回 nil, nil
	GetByPaymentSession(ctx context.Context, sessionID string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, int64, error)
	// TransitionStatus 条件更新 status=to WHERE status=from，返回是否发生迁移
	TransitionStatus(ctx context.Context, orderID string, from, to OrderStatus, at time.Time) (bool, error)
	// MarkAwaitingPayment 标记待支付订单正在等待异步到账，返回是否首次标记
	MarkAwaitingPayment(ctx context.Context, orderID string, at time.Time) (bool, error)
	// ListStalePending 创建时间早于 before、且未在等待异步到账的待支付订单
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*Order, error)

	WebhookEventProcessed(ctx context.Context, eventID string) (bool, error)
	// RecordWebhookEvent 重复记录同一事件不报错
	RecordWebhookEvent(ctx context.Context, event *ProcessedWebhookEvent) error
}
