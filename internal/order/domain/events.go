package domain

import "time"

// 事件类型
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderCancelled = "order.cancelled"
)

// OrderCreatedEvent 订单已创建（待支付）
type OrderCreatedEvent struct {
	OrderID            string    `json:"order_id"`
	OrderNumber        string    `json:"order_number"`
	UserID             string    `json:"user_id"`
	CartID             string    `json:"cart_id"`
	TotalAmountInCents int64     `json:"total_amount_in_cents"`
	Currency           string    `json:"currency"`
	ItemCount          int       `json:"item_count"`
	Timestamp          time.Time `json:"timestamp"`
}

// OrderPaidEvent 订单已支付；Channel 为 webhook 或 confirm
type OrderPaidEvent struct {
	OrderID          string    `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	UserID           string    `json:"user_id"`
	PaymentSessionID string    `json:"payment_session_id"`
	Channel          string    `json:"channel"`
	Timestamp        time.Time `json:"timestamp"`
}

// 取消原因
const (
	CancelReasonSessionExpired = "session_expired"
	CancelReasonPaymentFailed  = "payment_failed"
	CancelReasonStale          = "stale"
)

// OrderCancelledEvent 订单已取消
type OrderCancelledEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}
