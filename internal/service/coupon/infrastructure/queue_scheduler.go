// internal/service/coupon/infrastructure/queue_scheduler.go
package infrastructure

import (
	"context"
	"sync"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/service/coupon/domain/port"

	"golang.org/x/sync/errgroup"
)

// 每轮每个队列最多搬运的请求数，防止单张热券饿死其他队列。
const drainBatchSize = 10

// QueueScheduler 周期性地把 Redis 等待队列中的发券请求搬运到 Kafka。
type QueueScheduler struct {
	queue    port.IssueQueue
	producer port.IssueEventProducer
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewQueueScheduler(queue port.IssueQueue, producer port.IssueEventProducer, interval time.Duration) *QueueScheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &QueueScheduler{
		queue:    queue,
		producer: producer,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动搬运循环。
func (s *QueueScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		logger.Logger().Info().Dur("interval", s.interval).Msg("coupon queue scheduler started")
		for {
			select {
			case <-ticker.C:
				s.drainAll(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *QueueScheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *QueueScheduler) drainAll(ctx context.Context) {
	couponIDs, err := s.queue.PendingCoupons(ctx)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("failed to list pending coupon queues")
		return
	}
	if len(couponIDs) == 0 {
		return
	}

	// 不同券的队列互相独立，可以并行搬运
	g, gctx := errgroup.WithContext(ctx)
	for _, couponID := range couponIDs {
		couponID := couponID
		g.Go(func() error {
			s.drainOne(gctx, couponID)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *QueueScheduler) drainOne(ctx context.Context, couponID int64) {
	users, err := s.queue.Dequeue(ctx, couponID, drainBatchSize)
	if err != nil {
		logger.Logger().Error().Err(err).Int64("coupon_id", couponID).Msg("failed to dequeue issue requests")
		return
	}
	for _, userID := range users {
		if err := s.producer.PublishIssueRequested(ctx, couponID, userID); err != nil {
			// 发布失败：请求退回队列，下一轮重试。
			// 占位和 PROCESSING 状态保持有效，请求不会被静默丢掉。
			logger.Logger().Error().Err(err).Int64("coupon_id", couponID).Int64("user_id", userID).
				Msg("failed to publish dequeued issue request, re-enqueueing")
			if _, _, reqErr := s.queue.Enqueue(ctx, couponID, userID); reqErr != nil {
				logger.Logger().Error().Err(reqErr).Int64("coupon_id", couponID).Int64("user_id", userID).
					Msg("CRITICAL: failed to re-enqueue issue request after publish failure")
			}
		}
	}
}
