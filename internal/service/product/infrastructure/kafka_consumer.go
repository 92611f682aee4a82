// internal/service/product/infrastructure/kafka_consumer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/mq"
	"commerce/internal/service/product/application"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// orderCompletedMessage 是订单完成事件在热销榜消费侧的投影，
// 只解码榜单关心的字段。
type orderCompletedMessage struct {
	OrderID string `json:"orderId"`
	Items   []struct {
		ProductID int64 `json:"productId"`
		Quantity  int64 `json:"quantity"`
	} `json:"items"`
}

// RankingConsumerAdapter 监听订单完成事件，把成交量计入热销榜。
type RankingConsumerAdapter struct {
	reader  *kafka.Reader
	service *application.ProductService
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewRankingConsumerAdapter(reader *kafka.Reader, service *application.ProductService) *RankingConsumerAdapter {
	return &RankingConsumerAdapter{reader: reader, service: service}
}

func (a *RankingConsumerAdapter) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Logger().Info().Str("topic", a.reader.Config().Topic).Msg("sales ranking consumer started")
		for {
			if a.stopped.Load() {
				return
			}
			msg, err := a.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Logger().Error().Err(err).Msg("could not read order completed message, retrying")
				time.Sleep(time.Second)
				continue
			}

			a.processMessage(ctx, msg)
			if err := a.reader.CommitMessages(ctx, msg); err != nil {
				logger.Logger().Error().Err(err).Msg("failed to commit order completed message")
			}
		}
	}()
}

func (a *RankingConsumerAdapter) Stop() {
	a.stopped.Store(true)
	a.reader.Close()
	a.wg.Wait()
}

// 榜单计数是尽力而为的，任何失败都只记日志并提交 offset。
func (a *RankingConsumerAdapter) processMessage(parentCtx context.Context, msg kafka.Message) {
	var event orderCompletedMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Logger().Error().Err(err).Msg("failed to unmarshal order completed message, skipping")
		return
	}

	propagator := otel.GetTextMapPropagator()
	headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
	ctx := propagator.Extract(parentCtx, &headerCarrier)

	for _, item := range event.Items {
		a.service.RecordSale(ctx, item.ProductID, item.Quantity)
	}
}
