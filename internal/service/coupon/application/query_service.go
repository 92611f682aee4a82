// internal/service/coupon/application/query_service.go
package application

import (
	"context"
	"errors"

	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CouponQueryService 负责发券状态轮询和持券列表查询。
type CouponQueryService struct {
	userCouponRepo domain.UserCouponRepository
	queue          port.IssueQueue
	tracer         trace.Tracer
}

func NewCouponQueryService(userCouponRepo domain.UserCouponRepository, queue port.IssueQueue, tracer trace.Tracer) *CouponQueryService {
	return &CouponQueryService{userCouponRepo: userCouponRepo, queue: queue, tracer: tracer}
}

// Status 返回某个用户对某张券的发放进度。
// 状态表没有记录时落库查一次：同步路径发放的券没有状态表条目。
func (s *CouponQueryService) Status(ctx context.Context, couponID, userID int64) (*StatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.Status")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", couponID),
		attribute.Int64("user.id", userID),
	)

	status, message, position, size, err := s.queue.GetStatus(ctx, couponID, userID)
	if err != nil {
		return nil, err
	}
	if status != port.StatusNotRequested {
		return &StatusResult{Status: status, Message: message, QueuePosition: position, QueueSize: size}, nil
	}

	if _, err := s.userCouponRepo.FindByUserAndCoupon(ctx, userID, couponID); err == nil {
		return &StatusResult{Status: port.StatusSuccess, Message: "coupon issued"}, nil
	} else if !errors.Is(err, domain.ErrUserCouponNotFound) {
		return nil, err
	}
	return &StatusResult{Status: port.StatusNotRequested, Message: "no issue request found"}, nil
}

// UserCoupons 返回用户持有的全部券。
func (s *CouponQueryService) UserCoupons(ctx context.Context, userID int64) ([]*domain.UserCoupon, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.UserCoupons")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return s.userCouponRepo.FindByUser(ctx, userID)
}
