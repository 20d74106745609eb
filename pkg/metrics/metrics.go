// Package metrics 提供 storefront 的 Prometheus 指标
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/storefront/pkg/logger"
)

const namespace = "storefront"

// Metrics 指标集合，nil 接收者上的记录方法均为空操作
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 结账发起结果：success, empty_cart, provider_error ...
	CheckoutsTotal *prometheus.CounterVec
	// 支付确认：channel=push|pull，outcome=paid|already_paid|not_paid|not_found|anomaly
	ConfirmationsTotal *prometheus.CounterVec
	// webhook 签名校验失败
	WebhookSignatureFailures prometheus.Counter
	// 支付服务商调用耗时
	ProviderCallDuration *prometheus.HistogramVec
	// 发件箱投递结果：sent|retry|dead
	OutboxRelayTotal *prometheus.CounterVec
	// 过期取消的待支付订单
	OrdersExpiredTotal prometheus.Counter
	// 支付后清空购物车失败
	CartClearFailures prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		CheckoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "checkouts_total",
			Help:        "Checkout session initiations by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		ConfirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "payment_confirmations_total",
			Help:        "Payment confirmations by channel and outcome",
			ConstLabels: constLabels,
		}, []string{"channel", "outcome"}),
		WebhookSignatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "webhook_signature_failures_total",
			Help:        "Webhook deliveries rejected for bad signatures",
			ConstLabels: constLabels,
		}),
		ProviderCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "payment_provider_call_duration_seconds",
			Help:        "Payment provider call latency",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"operation", "result"}),
		OutboxRelayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "outbox_relay_total",
			Help:        "Outbox relay results",
			ConstLabels: constLabels,
		}, []string{"result"}),
		OrdersExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "orders_expired_total",
			Help:        "Pending orders cancelled by expiry",
			ConstLabels: constLabels,
		}),
		CartClearFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "cart_clear_failures_total",
			Help:        "Carts that could not be cleared after payment",
			ConstLabels: constLabels,
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CheckoutsTotal,
		m.ConfirmationsTotal,
		m.WebhookSignatureFailures,
		m.ProviderCallDuration,
		m.OutboxRelayTotal,
		m.OrdersExpiredTotal,
		m.CartClearFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordCheckout 记录结账发起结果
func (m *Metrics) RecordCheckout(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
}

// RecordConfirmation 记录支付确认
func (m *Metrics) RecordConfirmation(channel, outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordWebhookSignatureFailure 记录签名失败
func (m *Metrics) RecordWebhookSignatureFailure() {
	if m == nil {
		return
	}
	m.WebhookSignatureFailures.Inc()
}

// ObserveProviderCall 记录支付服务商调用
func (m *Metrics) ObserveProviderCall(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderCallDuration.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}

// RecordOutbox 记录发件箱投递结果
func (m *Metrics) RecordOutbox(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OutboxRelayTotal.WithLabelValues(result).Add(float64(n))
}

// RecordOrdersExpired 记录过期订单数
func (m *Metrics) RecordOrdersExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.OrdersExpiredTotal.Add(float64(n))
}

// RecordCartClearFailure 记录清空购物车失败
func (m *Metrics) RecordCartClearFailure() {
	if m == nil {
		return
	}
	m.CartClearFailures.Inc()
}

// Server Prometheus HTTP 服务
type Server struct {
	srv *http.Server
}

// NewServer 创建指标服务，gatherer 为空时使用默认注册表
func NewServer(port int, path string, gatherer prometheus.Gatherer) *Server {
	if path == "" {
		path = "/metrics"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start 阻塞运行直至 Shutdown
func (s *Server) Start() error {
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
