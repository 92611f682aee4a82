// internal/service/notification/kafka_consumer.go
package notification

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"commerce/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// orderCompletedMessage 只解码推送需要的字段。
type orderCompletedMessage struct {
	OrderID     string `json:"orderId"`
	UserID      int64  `json:"userId"`
	FinalAmount int64  `json:"finalAmount"`
}

// pushPayload 是推给客户端的通知格式。
type pushPayload struct {
	Type        string `json:"type"`
	OrderID     string `json:"orderId"`
	FinalAmount int64  `json:"finalAmount"`
	Message     string `json:"message"`
}

// OrderPushConsumer 消费订单完成事件并推送给在线用户。
type OrderPushConsumer struct {
	reader  *kafka.Reader
	hub     *Hub
	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewOrderPushConsumer(reader *kafka.Reader, hub *Hub) *OrderPushConsumer {
	return &OrderPushConsumer{reader: reader, hub: hub}
}

func (c *OrderPushConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Logger().Info().Str("topic", c.reader.Config().Topic).Msg("order push consumer started")
		for {
			if c.stopped.Load() {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Logger().Error().Err(err).Msg("could not read order completed message, retrying")
				time.Sleep(time.Second)
				continue
			}

			c.push(msg.Value)
			// 推送是尽力而为的，离线用户直接丢弃
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Logger().Error().Err(err).Msg("failed to commit order push message")
			}
		}
	}()
}

func (c *OrderPushConsumer) Stop() {
	c.stopped.Store(true)
	c.reader.Close()
	c.wg.Wait()
}

func (c *OrderPushConsumer) push(value []byte) {
	var event orderCompletedMessage
	if err := json.Unmarshal(value, &event); err != nil {
		logger.Logger().Error().Err(err).Msg("failed to unmarshal order completed message, skipping")
		return
	}

	payload, err := json.Marshal(pushPayload{
		Type:        "ORDER_COMPLETED",
		OrderID:     event.OrderID,
		FinalAmount: event.FinalAmount,
		Message:     "your order has been completed",
	})
	if err != nil {
		return
	}
	if delivered := c.hub.Push(event.UserID, payload); !delivered {
		logger.Logger().Debug().Int64("user_id", event.UserID).Str("order_id", event.OrderID).
			Msg("user offline, push dropped")
	}
}
