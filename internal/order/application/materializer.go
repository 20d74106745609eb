package application

import (
	"context"

	"github.com/wyfcoding/storefront/internal/order/domain"
	payment "github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
)

// OrderMaterializer 订单支付后的收尾；商品行已在发起结账时生成
type OrderMaterializer struct {
	carts   CartClearer
	metrics *metrics.Metrics
}

// NewOrderMaterializer 创建
func NewOrderMaterializer(carts CartClearer, m *metrics.Metrics) *OrderMaterializer {
	return &OrderMaterializer{carts: carts, metrics: m}
}

// ClearCartAfterPayment 清空会话元数据指向的购物车，缺失时使用订单上的购物车。
// 失败只记录，不影响已完成的支付确认。
func (m *OrderMaterializer) ClearCartAfterPayment(ctx context.Context, order *domain.Order, metadata map[string]string) {
	cartID := metadata[payment.MetadataCartID]
	if cartID == "" {
		cartID = order.CartID
	} else if cartID != order.CartID {
		logger.Warn(ctx, "Session cart differs from order cart", "order_id", order.ID, "session_cart_id", cartID, "order_cart_id", order.CartID)
	}

	if err := m.carts.ClearAfterPayment(context.WithoutCancel(ctx), cartID); err != nil {
		m.metrics.RecordCartClearFailure()
		logger.Error(ctx, "Failed to clear cart after payment, manual follow-up required",
			"order_id", order.ID, "order_number", order.OrderNumber, "cart_id", cartID, "error", err)
		return
	}
	logger.Info(ctx, "Cart cleared after payment", "order_id", order.ID, "cart_id", cartID)
}
