package domain

import "time"

// 事件类型
const (
	EventItemAdded   = "cart.item_added"
	EventItemRemoved = "cart.item_removed"
	EventCleared     = "cart.cleared"
)

// CartItemAddedEvent 添加商品
type CartItemAddedEvent struct {
	CartID           string    `json:"cart_id"`
	UserID           string    `json:"user_id"`
	ProductVariantID string    `json:"product_variant_id"`
	Quantity         int64     `json:"quantity"`
	Timestamp        time.Time `json:"timestamp"`
}

// CartItemRemovedEvent 移除商品
type CartItemRemovedEvent struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CartClearedEvent 清空购物车；Reason 为 user 或 payment
type CartClearedEvent struct {
	CartID       string    `json:"cart_id"`
	UserID       string    `json:"user_id"`
	ItemsRemoved int64     `json:"items_removed"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}
