package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/mq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelayConfig 投递配置
type RelayConfig struct {
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
	Retention   time.Duration
	// 领取后的租约，租约内其他实例不会重复领取
	Lease time.Duration
}

// Relay 轮询发件箱并投递到消息队列
type Relay struct {
	db      *db.DB
	sender  mq.Sender
	dlq     *mq.DeadLetterQueue
	metrics *metrics.Metrics
	cfg     RelayConfig
}

// NewRelay 创建投递器，dlq 可为空
func NewRelay(d *db.DB, sender mq.Sender, dlq *mq.DeadLetterQueue, m *metrics.Metrics, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Relay{db: d, sender: sender, dlq: dlq, metrics: m, cfg: cfg}
}

// Run 周期性投递，直到 ctx 取消
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	lastCleanup := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "Outbox relay batch failed", "error", err)
			}
			if r.cfg.Retention > 0 && time.Since(lastCleanup) > time.Hour {
				if _, err := r.Cleanup(ctx, time.Now().Add(-r.cfg.Retention)); err != nil {
					logger.Warn(ctx, "Outbox cleanup failed", "error", err)
				}
				lastCleanup = time.Now()
			}
		}
	}
}

// ProcessOnce 投递一批到期消息，返回成功条数。
// 同一 key 存在更早的待重试消息时，其后续消息不会被领取；批次内某条失败后同 key 的后续消息本轮跳过。
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := r.claim(ctx)
	if err != nil {
		return 0, err
	}

	sent, retried, dead := 0, 0, 0
	blocked := make(map[string]bool)
	for i := range batch {
		msg := &batch[i]
		if blocked[msg.MessageKey] {
			if err := r.mark(ctx, msg, map[string]any{"next_attempt_at": msg.NextAttemptAt}); err != nil {
				return sent, err
			}
			continue
		}

		sendErr := r.send(ctx, msg)
		switch {
		case sendErr == nil:
			sent++
			err = r.mark(ctx, msg, map[string]any{"status": StatusSent, "last_error": ""})
		case msg.Attempts+1 >= r.cfg.MaxAttempts:
			dead++
			r.deadLetter(ctx, msg, sendErr)
			err = r.mark(ctx, msg, map[string]any{
				"status":     StatusDead,
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": truncate(sendErr.Error(), 500),
			})
		default:
			retried++
			blocked[msg.MessageKey] = true
			err = r.mark(ctx, msg, map[string]any{
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      truncate(sendErr.Error(), 500),
				"next_attempt_at": time.Now().UTC().Add(retryDelay(r.cfg.Interval, msg.Attempts+1)),
			})
		}
		if err != nil {
			break
		}
	}

	r.metrics.RecordOutbox("sent", sent)
	r.metrics.RecordOutbox("retry", retried)
	r.metrics.RecordOutbox("dead", dead)
	if retried+dead > 0 {
		logger.Warn(ctx, "Outbox relay had failures", "sent", sent, "retry", retried, "dead", dead)
	}
	return sent, err
}

// claim 在短事务内领取一批到期消息，并把 next_attempt_at 推迟一个租约，投递在事务外进行
func (r *Relay) claim(ctx context.Context) ([]Message, error) {
	var batch []Message
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		waiting := r.db.Session(&gorm.Session{NewDB: true}).
			Table("outbox_messages AS earlier").
			Select("1").
			Where("earlier.message_key = outbox_messages.message_key").
			Where("earlier.status = ? AND earlier.created_at < outbox_messages.created_at AND earlier.next_attempt_at > ?", StatusPending, now)

		q := r.db.Conn(ctx).Model(&Message{}).
			Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
			Where("NOT EXISTS (?)", waiting).
			Order("created_at ASC, id ASC").
			Limit(r.cfg.BatchSize)
		if r.db.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&batch).Error; err != nil {
			return fmt.Errorf("load outbox batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		ids := make([]string, len(batch))
		for i := range batch {
			ids[i] = batch[i].ID
		}
		err := r.db.Conn(ctx).Model(&Message{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"next_attempt_at": now.Add(r.cfg.Lease), "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("lease outbox batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// send 在批次内做有限次快速重试
func (r *Relay) send(ctx context.Context, msg *Message) error {
	out := mq.Message{
		Topic:   msg.Topic,
		Key:     msg.MessageKey,
		Value:   []byte(msg.Payload),
		Headers: map[string]string{"event_id": msg.ID, "event_type": msg.EventType},
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.sender.Send(ctx, out)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
	return err
}

func (r *Relay) deadLetter(ctx context.Context, msg *Message, cause error) {
	logger.Error(ctx, "Outbox message moved to dead letter", "event_id", msg.ID, "event_type", msg.EventType, "error", cause)
	if r.dlq == nil {
		return
	}
	original := mq.Message{Topic: msg.Topic, Key: msg.MessageKey, Value: []byte(msg.Payload)}
	if err := r.dlq.Send(ctx, original, "max attempts exceeded", cause); err != nil {
		logger.Error(ctx, "Failed to send dead letter", "event_id", msg.ID, "error", err)
	}
}

func (r *Relay) mark(ctx context.Context, msg *Message, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	if err := r.db.Conn(ctx).Model(&Message{}).Where("id = ?", msg.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update outbox message %s: %w", msg.ID, err)
	}
	return nil
}

// Cleanup 删除早于 before 的已投递消息
func (r *Relay) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.Conn(ctx).Where("status = ? AND updated_at < ?", StatusSent, before).Delete(&Message{})
	return res.RowsAffected, res.Error
}

// retryDelay 第 attempt 次失败后的等待时长，指数增长，上限 10 分钟
func retryDelay(base time.Duration, attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.MaxInterval = 10 * time.Minute
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
