// Package stripe 实现 Stripe 兼容的结账会话接口与 webhook 验签
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/storefront/internal/payment/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config 客户端配置
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	// 连续瞬时失败多少次后熔断
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client Stripe 兼容客户端
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

type sessionBody struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (b *sessionBody) toDomain() *domain.CheckoutSession {
	return &domain.CheckoutSession{
		ID:                b.ID,
		URL:               b.URL,
		Status:            b.Status,
		PaymentStatus:     b.PaymentStatus,
		AmountTotal:       b.AmountTotal,
		Currency:          b.Currency,
		ClientReferenceID: b.ClientReferenceID,
		Metadata:          b.Metadata,
	}
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient 创建客户端
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Accept", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// 只有瞬时故障计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || domain.CategoryOf(err) != domain.CategoryTransient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{http: httpClient, breaker: breaker, metrics: m}
}

// CreateCheckoutSession 创建一次性付款结账会话
func (c *Client) CreateCheckoutSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.CheckoutSession, error) {
	form := map[string]string{
		"mode":        "payment",
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
	}
	if req.CustomerEmail != "" {
		form["customer_email"] = req.CustomerEmail
	}
	if req.ClientReferenceID != "" {
		form["client_reference_id"] = req.ClientReferenceID
	}
	for i, item := range req.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		form[prefix+"[quantity]"] = strconv.FormatInt(item.Quantity, 10)
		form[prefix+"[price_data][currency]"] = req.Currency
		form[prefix+"[price_data][unit_amount]"] = strconv.FormatInt(item.UnitAmountInCents, 10)
		form[prefix+"[price_data][product_data][name]"] = item.Name
		if item.ImageURL != "" {
			form[prefix+"[price_data][product_data][images][0]"] = item.ImageURL
		}
	}
	for k, v := range req.Metadata {
		form["metadata["+k+"]"] = v
	}

	return c.call(ctx, "create_session", func(r *resty.Request) (*resty.Response, error) {
		if req.IdempotencyKey != "" {
			r.SetHeader("Idempotency-Key", req.IdempotencyKey)
		}
		return r.SetFormData(form).Post("/v1/checkout/sessions")
	})
}

// RetrieveCheckoutSession 查询会话
func (c *Client) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	if sessionID == "" {
		return nil, &domain.ProviderError{Category: domain.CategoryRejected, Message: "session id is required"}
	}
	return c.call(ctx, "retrieve_session", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", sessionID).Get("/v1/checkout/sessions/{id}")
	})
}

func (c *Client) call(ctx context.Context, operation string, do func(*resty.Request) (*resty.Response, error)) (*domain.CheckoutSession, error) {
	ctx, span := trace.Tracer("payment-provider").Start(ctx, "stripe."+operation)
	defer span.End()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var body sessionBody
		var failure errorBody
		resp, err := do(c.http.R().SetContext(ctx).SetResult(&body).SetError(&failure))
		if err != nil {
			return nil, &domain.ProviderError{Category: domain.CategoryTransient, Message: "request failed", Err: err}
		}
		if resp.IsError() {
			return nil, classify(resp.StatusCode(), failure)
		}
		return body.toDomain(), nil
	})
	c.metrics.ObserveProviderCall(operation, err, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &domain.ProviderError{Category: domain.CategoryTransient, Message: "circuit open", Err: err}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("payment.error_category", domain.CategoryOf(err).String()))
		return nil, err
	}
	return out.(*domain.CheckoutSession), nil
}

// classify 按 HTTP 状态归类：401/403 为配置错误，429 与 5xx 为瞬时错误，其余 4xx 为拒绝
func classify(status int, body errorBody) *domain.ProviderError {
	pe := &domain.ProviderError{
		StatusCode: status,
		Code:       body.Error.Code,
		Message:    body.Error.Message,
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("unexpected status %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Category = domain.CategoryConfiguration
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		pe.Category = domain.CategoryTransient
	default:
		pe.Category = domain.CategoryRejected
	}
	return pe
}
