package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/storefront/internal/order/domain"
	"github.com/wyfcoding/storefront/pkg/db"
	"gorm.io/gorm"
)

type orderRepository struct{ db *db.DB }

// NewOrderRepository 创建订单仓储
func NewOrderRepository(d *db.DB) domain.OrderRepository {
	return &orderRepository{db: d}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.Conn(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *orderRepository) AttachPaymentSession(ctx context.Context, orderID, sessionID string) (bool, error) {
	res := r.db.Conn(ctx).Model(&domain.Order{}).
		Where("id = ? AND payment_session_id IS NULL", orderID).
		Updates(map[string]any{"payment_session_id": sessionID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("attach payment session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.first(ctx, "id = ?", orderID)
}

func (r *orderRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.first(ctx, "payment_session_id = ?", sessionID)
}

func (r *orderRepository) first(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var order domain.Order
	err := r.db.Conn(ctx).Preload("Items", orderItems).Where(query, arg).First(&order).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int64, error) {
	var orders []*domain.Order
	var total int64

	q := r.db.Conn(ctx).Model(&domain.Order{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	err := q.Preload("Items", orderItems).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (r *orderRepository) TransitionStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": at}
	switch to {
	case domain.OrderStatusPaid:
		updates["paid_at"] = at
	case domain.OrderStatusCancelled:
		updates["cancelled_at"] = at
	}
	res := r.db.Conn(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition order %s %s->%s: %w", orderID, from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) MarkAwaitingPayment(ctx context.Context, orderID string, at time.Time) (bool, error) {
	res := r.db.Conn(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ? AND awaiting_payment_at IS NULL", orderID, domain.OrderStatusPending).
		Updates(map[string]any{"awaiting_payment_at": at, "updated_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("mark order %s awaiting payment: %w", orderID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := r.db.Conn(ctx).
		Where("status = ? AND created_at < ? AND awaiting_payment_at IS NULL", domain.OrderStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) WebhookEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := r.db.Conn(ctx).Model(&domain.ProcessedWebhookEvent{}).Where("event_id = ?", eventID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return n > 0, nil
}

func (r *orderRepository) RecordWebhookEvent(ctx context.Context, event *domain.ProcessedWebhookEvent) error {
	if err := r.db.UpsertWithConflict(ctx, event, []string{"event_id"}, nil); err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func orderItems(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC, id ASC")
}
