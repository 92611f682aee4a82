// internal/service/coupon/application/use_service.go
package application

import (
	"context"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UseCouponService 是订单流程使用的核销入口。
type UseCouponService struct {
	couponRepo     domain.CouponRepository
	userCouponRepo domain.UserCouponRepository
	ruleEngine     port.RuleEngine
	tracer         trace.Tracer
}

func NewUseCouponService(couponRepo domain.CouponRepository, userCouponRepo domain.UserCouponRepository, ruleEngine port.RuleEngine, tracer trace.Tracer) *UseCouponService {
	return &UseCouponService{
		couponRepo:     couponRepo,
		userCouponRepo: userCouponRepo,
		ruleEngine:     ruleEngine,
		tracer:         tracer,
	}
}

// Use 核销一张用户券并返回折扣金额。
// 券必须属于 userID、状态为 ISSUED，且订单满足券的使用规则。
func (s *UseCouponService) Use(ctx context.Context, userID, userCouponID int64, fact port.Fact) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.Use")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("user_coupon.id", userCouponID),
	)

	uc, err := s.userCouponRepo.FindByID(ctx, userCouponID)
	if err != nil {
		return 0, err
	}
	if uc.UserID != userID {
		// 不泄露他人券的存在
		return 0, domain.ErrUserCouponNotFound
	}

	coupon, err := s.couponRepo.FindByID(ctx, uc.CouponID)
	if err != nil {
		return 0, err
	}

	if coupon.Rule != "" {
		ok, err := s.ruleEngine.Evaluate(coupon.Rule, fact)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		if !ok {
			return 0, domain.ErrNotEligible
		}
	}

	if err := uc.Use(time.Now()); err != nil {
		return 0, err
	}
	// 条件写是最终裁决：并发核销同一张券时只有一个请求命中 ISSUED -> USED
	if err := s.userCouponRepo.UpdateStatus(ctx, uc, domain.StatusIssued); err != nil {
		return 0, err
	}

	logger.Ctx(ctx).Info().Int64("user_coupon_id", userCouponID).Int64("discount", coupon.DiscountAmount).Msg("coupon used")
	return coupon.DiscountAmount, nil
}

// Restore 是 Use 的补偿：订单失败时把券退回 ISSUED。
func (s *UseCouponService) Restore(ctx context.Context, userCouponID int64) error {
	ctx, span := s.tracer.Start(ctx, "coupon.Restore")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_coupon.id", userCouponID))

	uc, err := s.userCouponRepo.FindByID(ctx, userCouponID)
	if err != nil {
		return err
	}
	if err := uc.Restore(); err != nil {
		return err
	}
	if err := s.userCouponRepo.UpdateStatus(ctx, uc, domain.StatusUsed); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Int64("user_coupon_id", userCouponID).Msg("coupon restored after order failure")
	return nil
}
