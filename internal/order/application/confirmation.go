package application

import (
	"context"
	"time"

	"github.com/wyfcoding/storefront/internal/order/domain"
	payment "github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/internal/pricing"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
)

// ConfirmationService 支付确认：webhook 推送与客户端拉取共用同一条件迁移
type ConfirmationService struct {
	tx              Transactor
	orders          domain.OrderRepository
	provider        payment.Provider
	verifier        payment.WebhookVerifier
	materializer    *OrderMaterializer
	publisher       EventPublisher
	metrics         *metrics.Metrics
	providerTimeout time.Duration
}

// NewConfirmationService 创建
func NewConfirmationService(
	tx Transactor,
	orders domain.OrderRepository,
	provider payment.Provider,
	verifier payment.WebhookVerifier,
	materializer *OrderMaterializer,
	publisher EventPublisher,
	m *metrics.Metrics,
	providerTimeout time.Duration,
) *ConfirmationService {
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &ConfirmationService{
		tx:              tx,
		orders:          orders,
		provider:        provider,
		verifier:        verifier,
		materializer:    materializer,
		publisher:       publisher,
		metrics:         m,
		providerTimeout: providerTimeout,
	}
}

// HandleWebhook 验签后处理事件。签名错误返回 Validation 错误且无任何副作用；
// 找不到订单、重复事件、未知事件类型均视为成功。
func (s *ConfirmationService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		s.metrics.RecordWebhookSignatureFailure()
		logger.Warn(ctx, "Rejected webhook with invalid signature", "error", err)
		return errorx.Wrap(errorx.KindValidation, "invalid_signature", "invalid webhook signature", err)
	}

	processed, err := s.orders.WebhookEventProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if processed {
		logger.Info(ctx, "Webhook event already processed", "event_id", event.ID, "event_type", event.Type)
		s.metrics.RecordConfirmation(ChannelWebhook, "duplicate_event")
		return nil
	}

	switch event.Type {
	case payment.EventSessionCompleted, payment.EventSessionAsyncPaymentSucceeded:
		_, err = s.confirm(ctx, ChannelWebhook, &event.Session)
	case payment.EventSessionExpired:
		err = s.cancelSession(ctx, &event.Session, domain.CancelReasonSessionExpired)
	case payment.EventSessionAsyncPaymentFailed:
		err = s.cancelSession(ctx, &event.Session, domain.CancelReasonPaymentFailed)
	default:
		logger.Debug(ctx, "Ignoring webhook event", "event_id", event.ID, "event_type", event.Type)
	}
	if err != nil {
		return err
	}

	return s.orders.RecordWebhookEvent(ctx, &domain.ProcessedWebhookEvent{
		EventID:     event.ID,
		EventType:   event.Type,
		SessionID:   event.Session.ID,
		ProcessedAt: time.Now().UTC(),
	})
}

// ConfirmSession 客户端跳转回来后主动确认。订单尚不存在时返回 nil, nil，调用方可重试。
func (s *ConfirmationService) ConfirmSession(ctx context.Context, userID, sessionID string) (*domain.Order, error) {
	if sessionID == "" {
		return nil, errorx.Validation("session_id_required", "session id is required")
	}

	order, err := s.orders.GetByPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order != nil {
		if order.UserID != userID {
			return nil, errorx.Forbidden("order_not_owned", "this order belongs to another user")
		}
		if order.IsPaid() {
			s.metrics.RecordConfirmation(ChannelConfirm, "already_paid")
			return order, nil
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	sess, err := s.provider.RetrieveCheckoutSession(pctx, sessionID)
	if err != nil {
		logger.Error(ctx, "Failed to retrieve checkout session", "session_id", sessionID, "error", err)
		return nil, providerError(err)
	}

	order, err = s.locate(ctx, sess)
	if err != nil {
		return nil, err
	}
	if order == nil {
		s.metrics.RecordConfirmation(ChannelConfirm, "unknown_session")
		return nil, nil
	}
	if order.UserID != userID {
		return nil, errorx.Forbidden("order_not_owned", "this order belongs to another user")
	}
	return s.settle(ctx, ChannelConfirm, order, sess)
}

// confirm 按会话定位订单后结算
func (s *ConfirmationService) confirm(ctx context.Context, channel string, sess *payment.CheckoutSession) (*domain.Order, error) {
	order, err := s.locate(ctx, sess)
	if err != nil {
		return nil, err
	}
	if order == nil {
		logger.Warn(ctx, "Payment confirmation for unknown session", "session_id", sess.ID, "metadata", sess.Metadata)
		s.metrics.RecordConfirmation(channel, "unknown_session")
		return nil, nil
	}
	return s.settle(ctx, channel, order, sess)
}

// settle 条件迁移 pending→paid，仅迁移成功的一方发布事件并清空购物车
func (s *ConfirmationService) settle(ctx context.Context, channel string, order *domain.Order, sess *payment.CheckoutSession) (*domain.Order, error) {
	if order.IsPaid() {
		s.metrics.RecordConfirmation(channel, "already_paid")
		return order, nil
	}
	if !sess.IsPaid() {
		if sess.AwaitingAsyncPayment() {
			marked, err := s.orders.MarkAwaitingPayment(ctx, order.ID, time.Now().UTC())
			if err != nil {
				return nil, err
			}
			if marked {
				logger.Info(ctx, "Order awaiting asynchronous payment", "order_id", order.ID, "session_id", sess.ID)
			}
			s.metrics.RecordConfirmation(channel, "awaiting_payment")
			return order, nil
		}
		logger.Info(ctx, "Checkout session not paid yet", "order_id", order.ID, "session_id", sess.ID, "payment_status", sess.PaymentStatus)
		s.metrics.RecordConfirmation(channel, "unpaid")
		return order, nil
	}
	if sess.AmountTotal > 0 && sess.AmountTotal != order.TotalAmountInCents {
		logger.Warn(ctx, "Paid amount differs from order total",
			"order_id", order.ID,
			"paid", pricing.Format(sess.AmountTotal, order.Currency),
			"total", pricing.Format(order.TotalAmountInCents, order.Currency))
	}

	now := time.Now().UTC()
	var transitioned bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		transitioned, err = s.orders.TransitionStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid, now)
		if err != nil || !transitioned {
			return err
		}
		return s.publisher.Publish(ctx, domain.EventOrderPaid, order.ID, domain.OrderPaidEvent{
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			UserID:           order.UserID,
			PaymentSessionID: sess.ID,
			Channel:          channel,
			Timestamp:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	current, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errorx.Internal("order disappeared during confirmation", nil)
	}

	if !transitioned {
		if current.Status == domain.OrderStatusCancelled {
			logger.Error(ctx, "Payment received for cancelled order, manual follow-up required",
				"order_id", order.ID, "order_number", order.OrderNumber, "session_id", sess.ID, "channel", channel)
			s.metrics.RecordConfirmation(channel, "cancelled_order")
		} else {
			s.metrics.RecordConfirmation(channel, "already_paid")
		}
		return current, nil
	}

	logger.Info(ctx, "Order paid", "order_id", order.ID, "order_number", order.OrderNumber, "channel", channel)
	s.metrics.RecordConfirmation(channel, "paid")
	s.materializer.ClearCartAfterPayment(ctx, current, sess.Metadata)
	return current, nil
}

// cancelSession 会话过期或异步支付失败时取消待支付订单
func (s *ConfirmationService) cancelSession(ctx context.Context, sess *payment.CheckoutSession, reason string) error {
	order, err := s.locate(ctx, sess)
	if err != nil || order == nil {
		return err
	}
	cancelled, err := cancelPending(ctx, s.tx, s.orders, s.publisher, order, reason)
	if err != nil {
		return err
	}
	if cancelled {
		logger.Info(ctx, "Order cancelled", "order_id", order.ID, "session_id", sess.ID, "reason", reason)
	}
	return nil
}

// locate 按会话查找订单；找不到时按元数据中的订单号查找并补记会话
func (s *ConfirmationService) locate(ctx context.Context, sess *payment.CheckoutSession) (*domain.Order, error) {
	order, err := s.orders.GetByPaymentSession(ctx, sess.ID)
	if err != nil || order != nil {
		return order, err
	}

	orderID := sess.Metadata[payment.MetadataOrderID]
	if orderID == "" {
		orderID = sess.ClientReferenceID
	}
	if orderID == "" {
		return nil, nil
	}
	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil || order == nil {
		return nil, err
	}
	if order.PaymentSessionID != nil {
		logger.Warn(ctx, "Order already bound to another session", "order_id", order.ID,
			"bound_session_id", *order.PaymentSessionID, "session_id", sess.ID)
		return nil, nil
	}
	if _, err := s.orders.AttachPaymentSession(ctx, order.ID, sess.ID); err != nil {
		return nil, err
	}
	return s.orders.GetByPaymentSession(ctx, sess.ID)
}

// cancelPending 条件迁移 pending→cancelled 并发布事件
func cancelPending(ctx context.Context, tx Transactor, orders domain.OrderRepository, publisher EventPublisher, order *domain.Order, reason string) (bool, error) {
	now := time.Now().UTC()
	var cancelled bool
	err := tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = orders.TransitionStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled, now)
		if err != nil || !cancelled {
			return err
		}
		return publisher.Publish(ctx, domain.EventOrderCancelled, order.ID, domain.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Reason:      reason,
			Timestamp:   now,
		})
	})
	return cancelled, err
}
