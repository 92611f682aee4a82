// internal/service/coupon/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/mq"
	"commerce/internal/service/coupon/application"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// IssueConsumerAdapter 是一个驱动适配器：监听发券工作队列，
// 驱动应用服务把发放落库。
type IssueConsumerAdapter struct {
	reader  *kafka.Reader
	service *application.IssueCouponService
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewIssueConsumerAdapter(reader *kafka.Reader, service *application.IssueCouponService) *IssueConsumerAdapter {
	return &IssueConsumerAdapter{reader: reader, service: service}
}

// Start 开始监听。这是一个长期运行的方法。
func (a *IssueConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Logger().Info().Str("topic", a.reader.Config().Topic).Msg("coupon issue consumer started")
		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Logger().Info().Msg("coupon issue consumer shutting down")
					return
				}
				logger.Logger().Error().Err(err).Msg("could not read coupon issue message, retrying")
				time.Sleep(time.Second) // 避免快速失败循环
				continue
			}

			if a.processMessage(ctx, msg) {
				if err := a.reader.CommitMessages(ctx, msg); err != nil {
					logger.Logger().Error().Err(err).Msg("failed to commit coupon issue message")
				}
			}
		}
	}()
}

// Stop 优雅地停止消费者。
func (a *IssueConsumerAdapter) Stop() {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
}

// processMessage 返回消息是否可以提交。
// 瞬态错误不提交 offset，依赖重新投递；落库逻辑是幂等的。
func (a *IssueConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) bool {
	var event CouponIssueMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Logger().Error().Err(err).Msg("failed to unmarshal coupon issue message, skipping")
		return true // 毒消息：跳过并提交，避免卡住分区
	}

	propagator := otel.GetTextMapPropagator()
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := propagator.Extract(parentCtx, &headerCarrier)

	if err := a.service.HandleIssueRequested(ctx, event.CouponID, event.UserID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("coupon_id", event.CouponID).Int64("user_id", event.UserID).
			Msg("failed to handle coupon issue request")
		return false
	}
	return true
}
