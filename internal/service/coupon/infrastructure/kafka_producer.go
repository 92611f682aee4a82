// internal/service/coupon/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"strconv"

	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// CouponIssueMessage 是发往工作队列的发券请求。
type CouponIssueMessage struct {
	CouponID int64 `json:"couponId"`
	UserID   int64 `json:"userId"`
}

// IssueProducerAdapter 实现 port.IssueEventProducer。
// 以 couponID 作为分区 Key，同一张券的请求在分区内有序。
type IssueProducerAdapter struct {
	writer *kafka.Writer
}

func NewIssueProducerAdapter(writer *kafka.Writer) *IssueProducerAdapter {
	return &IssueProducerAdapter{writer: writer}
}

func (p *IssueProducerAdapter) PublishIssueRequested(ctx context.Context, couponID, userID int64) error {
	msg := CouponIssueMessage{CouponID: couponID, UserID: userID}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := []byte(strconv.FormatInt(couponID, 10))
	if err := mq.ProduceMessage(ctx, p.writer, key, value); err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("coupon_id", couponID).Int64("user_id", userID).
			Msg("failed to produce coupon issue message")
		return err
	}
	return nil
}
