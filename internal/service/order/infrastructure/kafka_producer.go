// internal/service/order/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"commerce/internal/pkg/mq"
	"commerce/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// OrderCompletedMessage 是订单完成事件的线上格式，
// 被热销榜消费者和推送网关共同消费。
type OrderCompletedMessage struct {
	OrderID        string                      `json:"orderId"`
	UserID         int64                       `json:"userId"`
	TotalAmount    int64                       `json:"totalAmount"`
	DiscountAmount int64                       `json:"discountAmount"`
	FinalAmount    int64                       `json:"finalAmount"`
	Items          []OrderCompletedItemMessage `json:"items"`
	CompletedAt    time.Time                   `json:"completedAt"`
}

type OrderCompletedItemMessage struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

// OrderEventPublisherAdapter 实现 port.OrderEventPublisher。
// 以 userID 作为分区 Key，同一用户的订单事件在分区内有序。
type OrderEventPublisherAdapter struct {
	writer *kafka.Writer
}

func NewOrderEventPublisherAdapter(writer *kafka.Writer) *OrderEventPublisherAdapter {
	return &OrderEventPublisherAdapter{writer: writer}
}

func (p *OrderEventPublisherAdapter) PublishOrderCompleted(ctx context.Context, order *domain.Order) error {
	msg := OrderCompletedMessage{
		OrderID:        order.ID,
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		FinalAmount:    order.FinalAmount,
		CompletedAt:    order.UpdatedAt,
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, OrderCompletedItemMessage{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := []byte(strconv.FormatInt(order.UserID, 10))
	return mq.ProduceMessage(ctx, p.writer, key, value)
}
