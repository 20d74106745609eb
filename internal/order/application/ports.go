package application

import (
	"context"
	"errors"
	"time"

	address "github.com/wyfcoding/storefront/internal/address/domain"
	cart "github.com/wyfcoding/storefront/internal/cart/application"
	payment "github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/errorx"
)

// Transactor 在事务中执行
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher 事件发布（发件箱）
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, event any) error
}

// CartReader 结账所需的购物车操作
type CartReader interface {
	View(ctx context.Context, userID string) (*cart.CartView, error)
	SetShippingAddress(ctx context.Context, userID, addressID string) (*cart.CartView, error)
}

// CartClearer 支付后清空购物车
type CartClearer interface {
	ClearAfterPayment(ctx context.Context, cartID string) error
}

// AddressOwner 校验地址归属
type AddressOwner interface {
	GetOwned(ctx context.Context, userID, addressID string) (*address.ShippingAddress, error)
}

// Locker 分布式锁
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// OrderNumberGenerator 订单号生成
type OrderNumberGenerator interface {
	NextOrderNumber() string
}

// 确认渠道
const (
	ChannelWebhook = "webhook"
	ChannelConfirm = "confirm"
)

// providerError 将服务商错误映射为业务错误
func providerError(err error) error {
	if err == nil {
		return nil
	}
	switch payment.CategoryOf(err) {
	case payment.CategoryConfiguration:
		return errorx.Wrap(errorx.KindExternalConfiguration, "payment_configuration_error",
			"payments are misconfigured, please contact support", err)
	case payment.CategoryRejected:
		return errorx.Wrap(errorx.KindExternalRejected, "payment_rejected",
			"the payment provider rejected the request, please try again", err)
	case payment.CategoryTransient:
		return errorx.Wrap(errorx.KindExternalTransient, "payment_unavailable",
			"the payment provider is unavailable, please try again shortly", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorx.Wrap(errorx.KindExternalTransient, "payment_unavailable",
			"the payment provider is unavailable, please try again shortly", err)
	}
	return err
}
