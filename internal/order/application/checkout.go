package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	cart "github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/order/domain"
	payment "github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/internal/pricing"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/errorx"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
)

// CheckoutConfig 结账配置
type CheckoutConfig struct {
	Currency        string
	PublicURL       string
	ProviderTimeout time.Duration
	LockTTL         time.Duration
}

// InitiateCommand 发起结账
type InitiateCommand struct {
	UserID            string
	Email             string
	ShippingAddressID string
}

// InitiateResult 结账会话结果
type InitiateResult struct {
	RedirectURL string `json:"redirectUrl"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	SessionID   string `json:"sessionId"`
}

// CheckoutService 结账会话发起
type CheckoutService struct {
	tx        Transactor
	orders    domain.OrderRepository
	carts     CartReader
	addresses AddressOwner
	provider  payment.Provider
	publisher EventPublisher
	numbers   OrderNumberGenerator
	locker    Locker
	metrics   *metrics.Metrics
	cfg       CheckoutConfig
}

// NewCheckoutService 创建结账服务；locker 为空时不加锁
func NewCheckoutService(
	tx Transactor,
	orders domain.OrderRepository,
	carts CartReader,
	addresses AddressOwner,
	provider payment.Provider,
	publisher EventPublisher,
	numbers OrderNumberGenerator,
	locker Locker,
	m *metrics.Metrics,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &CheckoutService{
		tx:        tx,
		orders:    orders,
		carts:     carts,
		addresses: addresses,
		provider:  provider,
		publisher: publisher,
		numbers:   numbers,
		locker:    locker,
		metrics:   m,
		cfg:       cfg,
	}
}

// Initiate 锁定价格、创建待支付订单并向支付服务商申请结账会话。
// 服务商调用失败时订单保持 pending 且无会话，由过期清理处理。
func (s *CheckoutService) Initiate(ctx context.Context, cmd InitiateCommand) (res *InitiateResult, err error) {
	defer func() {
		outcome := "created"
		if err != nil {
			outcome = errorx.KindOf(err).String()
		}
		s.metrics.RecordCheckout(outcome)
	}()

	release, err := s.lock(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var order *domain.Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.createPendingOrder(ctx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Pending order created", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.TotalAmountInCents)

	pctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()
	sess, err := s.provider.CreateCheckoutSession(pctx, s.sessionRequest(order, cmd.Email))
	if err != nil {
		logger.Error(ctx, "Failed to create checkout session", "order_id", order.ID, "error", err)
		return nil, providerError(err)
	}

	attached, err := s.orders.AttachPaymentSession(ctx, order.ID, sess.ID)
	if err != nil {
		return nil, err
	}
	if !attached {
		// 已被 webhook 按元数据关联
		logger.Warn(ctx, "Payment session already attached", "order_id", order.ID, "session_id", sess.ID)
	}

	return &InitiateResult{
		RedirectURL: sess.URL,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   sess.ID,
	}, nil
}

func (s *CheckoutService) lock(ctx context.Context, userID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	l, err := s.locker.TryLock(ctx, "checkout:lock:"+userID, s.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, errorx.Conflict("checkout_in_progress", "a checkout is already in progress for this cart")
	}
	if err != nil {
		logger.Warn(ctx, "Checkout lock unavailable, continuing without it", "user_id", userID, "error", err)
		return func() {}, nil
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "Failed to release checkout lock", "user_id", userID, "error", err)
		}
	}, nil
}

// createPendingOrder 在事务内读取购物车并以当时价格创建订单及商品行
func (s *CheckoutService) createPendingOrder(ctx context.Context, cmd InitiateCommand) (*domain.Order, error) {
	view, err := s.carts.View(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if view == nil || len(view.Items) == 0 {
		return nil, errorx.Validation("cart_empty", "your cart is empty")
	}
	if view.HasUnavailableItems() {
		return nil, errorx.Validation("cart_item_unavailable", "some items in your cart are no longer available")
	}

	addressID := strings.TrimSpace(cmd.ShippingAddressID)
	if addressID == "" && view.ShippingAddressID != nil {
		addressID = *view.ShippingAddressID
	}
	if addressID == "" {
		return nil, errorx.Validation("shipping_address_required", "select a shipping address")
	}
	if _, err := s.addresses.GetOwned(ctx, cmd.UserID, addressID); err != nil {
		return nil, err
	}
	if view.ShippingAddressID == nil || *view.ShippingAddressID != addressID {
		if view, err = s.carts.SetShippingAddress(ctx, cmd.UserID, addressID); err != nil {
			return nil, err
		}
	}

	order, err := s.lockPrices(view, cmd.UserID, addressID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, domain.EventOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:            order.ID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		CartID:             order.CartID,
		TotalAmountInCents: order.TotalAmountInCents,
		Currency:           order.Currency,
		ItemCount:          len(order.Items),
		Timestamp:          order.CreatedAt,
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// lockPrices 用购物车视图中的单价生成订单，之后不再读取目录价
func (s *CheckoutService) lockPrices(view *cart.CartView, userID, addressID string) (*domain.Order, error) {
	total, err := pricing.Total(view.Lines())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                 uuid.NewString(),
		OrderNumber:        s.numbers.NextOrderNumber(),
		UserID:             userID,
		CartID:             view.ID,
		ShippingAddressID:  addressID,
		TotalAmountInCents: total,
		Currency:           strings.ToLower(s.cfg.Currency),
		Status:             domain.OrderStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
		Items:              make([]domain.OrderItem, 0, len(view.Items)),
	}
	for _, it := range view.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:               uuid.NewString(),
			OrderID:          order.ID,
			ProductVariantID: it.ProductVariantID,
			Name:             it.Name,
			ImageURL:         it.ImageURL,
			Quantity:         it.Quantity,
			PriceInCents:     it.UnitPriceInCents,
			CreatedAt:        now,
		})
	}
	return order, nil
}

func (s *CheckoutService) sessionRequest(order *domain.Order, email string) payment.CreateSessionRequest {
	items := make([]payment.LineItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, payment.LineItem{
			Name:              it.Name,
			ImageURL:          it.ImageURL,
			UnitAmountInCents: it.PriceInCents,
			Quantity:          it.Quantity,
		})
	}
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	return payment.CreateSessionRequest{
		Currency:          order.Currency,
		LineItems:         items,
		SuccessURL:        base + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         base + "/cart/payment?canceled=1",
		CustomerEmail:     email,
		ClientReferenceID: order.ID,
		Metadata: map[string]string{
			payment.MetadataOrderID:           order.ID,
			payment.MetadataCartID:            order.CartID,
			payment.MetadataUserID:            order.UserID,
			payment.MetadataShippingAddressID: order.ShippingAddressID,
		},
		IdempotencyKey: order.ID,
	}
}
