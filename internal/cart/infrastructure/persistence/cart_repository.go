package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

type cartRepository struct{ db *db.DB }

// NewCartRepository 创建购物车仓储
func NewCartRepository(d *db.DB) domain.CartRepository {
	return &cartRepository{db: d}
}

func (r *cartRepository) EnsureForUser(ctx context.Context, userID string) (*domain.Cart, error) {
	now := time.Now().UTC()
	candidate := &domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := r.db.UpsertWithConflict(ctx, candidate, []string{"user_id"}, nil); err != nil {
		return nil, fmt.Errorf("ensure cart for user: %w", err)
	}
	cart, err := r.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for user %s vanished after upsert", userID)
	}
	return cart, nil
}

func (r *cartRepository) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *cartRepository) GetByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	return r.first(ctx, "id = ?", cartID)
}

func (r *cartRepository) first(ctx context.Context, query string, arg any) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.db.Conn(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Where(query, arg).
		First(&cart).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &cart, nil
}

func (r *cartRepository) GetItem(ctx context.Context, itemID string) (*domain.CartItem, string, error) {
	var row struct {
		domain.CartItem
		OwnerID string
	}
	err := r.db.Conn(ctx).
		Table("cart_items").
		Select("cart_items.*, carts.user_id AS owner_id").
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ?", itemID).
		Take(&row).Error
	if db.IsNotFound(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get cart item %s: %w", itemID, err)
	}
	item := row.CartItem
	return &item, row.OwnerID, nil
}

func (r *cartRepository) IncrementItem(ctx context.Context, cartID, variantID string, quantity, limit int64) error {
	now := time.Now().UTC()
	item := &domain.CartItem{
		ID:               uuid.NewString(),
		CartID:           cartID,
		ProductVariantID: variantID,
		Quantity:         quantity,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := r.db.UpsertWithConflict(ctx, item, []string{"cart_id", "product_variant_id"}, map[string]any{
		"quantity": gorm.Expr("CASE WHEN cart_items.quantity + ? > ? THEN ? ELSE cart_items.quantity + ? END",
			quantity, limit, limit, quantity),
		"updated_at": now,
	})
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) SetItemQuantity(ctx context.Context, itemID string, quantity int64) error {
	err := r.db.Conn(ctx).Model(&domain.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("set cart item quantity: %w", err)
	}
	return nil
}

func (r *cartRepository) DecrementItem(ctx context.Context, itemID string) (bool, error) {
	res := r.db.Conn(ctx).Model(&domain.CartItem{}).
		Where("id = ? AND quantity > 1", itemID).
		Updates(map[string]any{"quantity": gorm.Expr("quantity - 1"), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("decrement cart item: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	n, err := r.DeleteItem(ctx, itemID)
	return n > 0, err
}

func (r *cartRepository) DeleteItem(ctx context.Context, itemID string) (int64, error) {
	res := r.db.Conn(ctx).Where("id = ?", itemID).Delete(&domain.CartItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete cart item: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *cartRepository) DeleteItems(ctx context.Context, cartID string) (int64, error) {
	res := r.db.Conn(ctx).Where("cart_id = ?", cartID).Delete(&domain.CartItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete cart items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *cartRepository) SetShippingAddress(ctx context.Context, cartID string, addressID *string) error {
	err := r.db.Conn(ctx).Model(&domain.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"shipping_address_id": addressID, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("set cart shipping address: %w", err)
	}
	return nil
}
