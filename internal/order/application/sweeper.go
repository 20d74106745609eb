package application

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/storefront/internal/order/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
)

// ExpirySweeper 取消超过 TTL 仍未支付的订单
type ExpirySweeper struct {
	tx        Transactor
	orders    domain.OrderRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	ttl       time.Duration
	interval  time.Duration
	batchSize int
}

// NewExpirySweeper 创建
func NewExpirySweeper(tx Transactor, orders domain.OrderRepository, publisher EventPublisher, m *metrics.Metrics, ttl, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		tx:        tx,
		orders:    orders,
		publisher: publisher,
		metrics:   m,
		ttl:       ttl,
		interval:  interval,
		batchSize: 100,
	}
}

// Run 周期清理，直到 ctx 取消
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "Pending order sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce 取消一批过期订单，返回取消数量
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	stale, err := s.orders.ListStalePending(ctx, time.Now().UTC().Add(-s.ttl), s.batchSize)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, order := range stale {
		cancelled, err := cancelPending(ctx, s.tx, s.orders, s.publisher, order, domain.CancelReasonStale)
		if err != nil {
			s.metrics.RecordOrdersExpired(n)
			return n, err
		}
		if cancelled {
			n++
		}
	}
	s.metrics.RecordOrdersExpired(n)
	if n > 0 {
		logger.Info(ctx, "Cancelled stale pending orders", "count", n, "ttl", s.ttl.String())
	}
	return n, nil
}
