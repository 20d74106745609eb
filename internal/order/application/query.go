package application

import (
	"context"

	"github.com/wyfcoding/storefront/internal/order/domain"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/utils"
)

// OrderQueryService 订单查询
type OrderQueryService struct {
	orders domain.OrderRepository
}

// NewOrderQueryService 创建
func NewOrderQueryService(orders domain.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orders: orders}
}

// GetBySession 按支付会话查询订单，需为本人订单
func (s *OrderQueryService) GetBySession(ctx context.Context, userID, sessionID string) (*domain.Order, error) {
	order, err := s.orders.GetByPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errorx.NotFound("order_not_found", "order not found")
	}
	if order.UserID != userID {
		return nil, errorx.Forbidden("order_not_owned", "this order belongs to another user")
	}
	return order, nil
}

// ListByUser 用户订单，最新在前
func (s *OrderQueryService) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*domain.Order, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize)
	orders, total, err := s.orders.ListByUser(ctx, userID, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	p.SetTotal(total)
	return orders, p, nil
}
