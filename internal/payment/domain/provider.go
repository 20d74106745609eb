package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// 会话支付状态
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// SessionStatusComplete 顾客已提交支付；异步支付方式此时可能仍为 unpaid
const SessionStatusComplete = "complete"

// 支付服务商事件类型
const (
	EventSessionCompleted             = "checkout.session.completed"
	EventSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventSessionAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventSessionExpired               = "checkout.session.expired"
)

// 会话元数据键
const (
	MetadataOrderID           = "orderId"
	MetadataCartID            = "cartId"
	MetadataUserID            = "userId"
	MetadataShippingAddressID = "shippingAddressId"
)

// LineItem 结账会话商品行，金额以分为单位
type LineItem struct {
	Name              string
	ImageURL          string
	UnitAmountInCents int64
	Quantity          int64
}

// CreateSessionRequest 创建结账会话请求
type CreateSessionRequest struct {
	Currency          string
	LineItems         []LineItem
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
	// 相同键的重复请求返回同一会话
	IdempotencyKey string
}

// CheckoutSession 服务商侧结账会话
type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	ClientReferenceID string
	Metadata          map[string]string
}

// AwaitingAsyncPayment 会话已完成但款项尚未到账
func (s *CheckoutSession) AwaitingAsyncPayment() bool {
	return s.Status == SessionStatusComplete && !s.IsPaid()
}

// IsPaid 是否已付款
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Event 已验签的 webhook 事件
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Session CheckoutSession
}

// Provider 支付服务商
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// WebhookVerifier 校验签名并解析事件
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (*Event, error)
}

// ErrInvalidSignature 签名缺失、格式错误、不匹配或超出时间容忍度
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrorCategory 服务商错误类别
type ErrorCategory int

const (
	// 密钥无效或缺失
	CategoryConfiguration ErrorCategory = iota + 1
	// 请求被拒绝
	CategoryRejected
	// 网络错误、超时、限流、5xx、熔断打开
	CategoryTransient
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryRejected:
		return "rejected"
	case CategoryTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ProviderError 服务商调用错误
type ProviderError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment provider %s error: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("payment provider %s error (status %d, code %q): %s", e.Category, e.StatusCode, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CategoryOf 返回错误链中的服务商错误类别，非服务商错误返回 0
func CategoryOf(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return 0
}
