package domain

import (
	"context"
	"time"
)

// Cart 每个用户至多一个购物车，user_id 唯一
type Cart struct {
	ID                string  `gorm:"size:36;primaryKey"`
	UserID            string  `gorm:"size:64;uniqueIndex;not null"`
	ShippingAddressID *string `gorm:"size:36"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []CartItem `gorm:"foreignKey:CartID"`
}

func (Cart) TableName() string { return "carts" }

// CartItem 同一购物车内每个规格至多一行，(cart_id, product_variant_id) 唯一
type CartItem struct {
	ID               string `gorm:"size:36;primaryKey"`
	CartID           string `gorm:"size:36;not null;uniqueIndex:idx_cart_items_cart_variant,priority:1"`
	ProductVariantID string `gorm:"size:36;not null;uniqueIndex:idx_cart_items_cart_variant,priority:2"`
	Quantity         int64  `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (CartItem) TableName() string { return "cart_items" }

// CartRepository 购物车仓储；所有写操作均为单条原子语句
type CartRepository interface {
	// EnsureForUser 不存在则创建（冲突时忽略），返回带商品的购物车
	EnsureForUser(ctx context.Context, userID string) (*Cart, error)
	// GetByUser 不存在时返回 nil, nil
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	GetByID(ctx context.Context, cartID string) (*Cart, error)
	// GetItem 返回商品行及其所属购物车的用户；不存在时返回 nil
	GetItem(ctx context.Context, itemID string) (*CartItem, string, error)
	// IncrementItem 插入或累加数量，累加结果不超过 limit
	IncrementItem(ctx context.Context, cartID, variantID string, quantity, limit int64) error
	SetItemQuantity(ctx context.Context, itemID string, quantity int64) error
	// DecrementItem 数量大于 1 时减 1，否则删除该行；返回是否删除
	DecrementItem(ctx context.Context, itemID string) (bool, error)
	DeleteItem(ctx context.Context, itemID string) (int64, error)
	DeleteItems(ctx context.Context, cartID string) (int64, error)
	SetShippingAddress(ctx context.Context, cartID string, addressID *string) error
}
