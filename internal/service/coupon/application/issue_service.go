// internal/service/coupon/application/issue_service.go
package application

import (
	"context"
	"errors"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/metrics"
	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// IssueCouponService 实现先着顺发券。
//
// 正确性依赖两道闸门：
//  1. Redis Lua 闸门（port.IssueGate）在入口处原子地完成
//     查重 + 扣余量，拦截绝大多数超发和重复请求；
//  2. 数据库的条件自增 + (user_id, coupon_id) 唯一索引
//     （domain.IssuanceStore）作为最终一致性兜底。
//
// async 模式下闸门放行的请求进入队列，由 Kafka 消费者落库；
// 同步模式下直接落库。
type IssueCouponService struct {
	couponRepo domain.CouponRepository
	store      domain.IssuanceStore
	gate       port.IssueGate
	queue      port.IssueQueue
	tracer     trace.Tracer
	async      bool
}

func NewIssueCouponService(
	couponRepo domain.CouponRepository,
	store domain.IssuanceStore,
	gate port.IssueGate,
	queue port.IssueQueue,
	tracer trace.Tracer,
	async bool,
) *IssueCouponService {
	return &IssueCouponService{
		couponRepo: couponRepo,
		store:      store,
		gate:       gate,
		queue:      queue,
		tracer:     tracer,
		async:      async,
	}
}

// Issue 尝试给用户发一张券。
func (s *IssueCouponService) Issue(ctx context.Context, couponID, userID int64) (*IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "coupon.Issue")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", couponID),
		attribute.Int64("user.id", userID),
	)

	coupon, err := s.couponRepo.FindByID(ctx, couponID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !coupon.Active(time.Now()) {
		metrics.CouponIssueTotal.WithLabelValues("inactive").Inc()
		return nil, domain.ErrInvalidCoupon
	}

	// 1. 原子闸门：查重 + 扣余量是单个 Lua 脚本
	result, err := s.gate.Reserve(ctx, couponID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue gate failed")
		metrics.CouponIssueTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	switch result {
	case port.GateSoldOut:
		span.AddEvent("coupon sold out")
		metrics.CouponIssueTotal.WithLabelValues("sold_out").Inc()
		return nil, domain.ErrSoldOut
	case port.GateDuplicate:
		span.AddEvent("duplicate issue attempt")
		metrics.CouponIssueTotal.WithLabelValues("duplicate").Inc()
		return nil, domain.ErrAlreadyIssued
	case port.GateAccepted:
		// fallthrough to issuance below
	default:
		metrics.CouponIssueTotal.WithLabelValues("error").Inc()
		return nil, errors.New("coupon: unknown gate result")
	}

	if s.async {
		return s.enqueue(ctx, couponID, userID)
	}
	return s.persist(ctx, coupon, userID)
}

// enqueue 闸门放行后排队等待异步落库。
func (s *IssueCouponService) enqueue(ctx context.Context, couponID, userID int64) (*IssueResult, error) {
	position, size, err := s.queue.Enqueue(ctx, couponID, userID)
	if err != nil {
		// 排队失败必须把闸门里扣掉的名额还回去，否则名额就丢了
		if cancelErr := s.gate.Cancel(ctx, couponID, userID); cancelErr != nil {
			logger.Ctx(ctx).Error().Err(cancelErr).Int64("coupon_id", couponID).Int64("user_id", userID).
				Msg("CRITICAL: failed to cancel gate reservation after enqueue failure")
		}
		metrics.CouponIssueTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := s.queue.SetStatus(ctx, couponID, userID, port.StatusProcessing, "queued for issuance"); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to record issue status")
	}

	metrics.CouponIssueTotal.WithLabelValues("queued").Inc()
	logger.Ctx(ctx).Info().Int64("coupon_id", couponID).Int64("user_id", userID).
		Int64("position", position).Msg("coupon issue request queued")
	return &IssueResult{Queued: true, QueuePosition: position, QueueSize: size}, nil
}

// persist 同步路径：直接落库，失败时补偿闸门。
func (s *IssueCouponService) persist(ctx context.Context, coupon *domain.Coupon, userID int64) (*IssueResult, error) {
	uc, err := s.store.PersistIssuance(ctx, coupon.ID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyIssued) {
			// 闸门和库不一致（例如 Redis 被重置过），库是权威
			metrics.CouponIssueTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		if cancelErr := s.gate.Cancel(ctx, coupon.ID, userID); cancelErr != nil {
			logger.Ctx(ctx).Error().Err(cancelErr).Int64("coupon_id", coupon.ID).Int64("user_id", userID).
				Msg("CRITICAL: failed to cancel gate reservation after persist failure")
		}
		metrics.CouponIssueTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CouponIssueTotal.WithLabelValues("issued").Inc()
	return &IssueResult{UserCoupon: uc, Coupon: coupon}, nil
}

// HandleIssueRequested 是异步路径的消费端入口，由 Kafka 消费者调用。
// 必须幂等：消息可能被重复投递。
func (s *IssueCouponService) HandleIssueRequested(ctx context.Context, couponID, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "coupon.HandleIssueRequested", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("coupon.id", couponID),
		attribute.Int64("user.id", userID),
	)

	_, err := s.store.PersistIssuance(ctx, couponID, userID)
	switch {
	case err == nil:
		metrics.CouponIssueTotal.WithLabelValues("issued").Inc()
		return s.queue.SetStatus(ctx, couponID, userID, port.StatusSuccess, "coupon issued")
	case errors.Is(err, domain.ErrAlreadyIssued):
		// 重复投递：第一次已经成功了
		span.AddEvent("duplicate delivery, issuance already persisted")
		return s.queue.SetStatus(ctx, couponID, userID, port.StatusSuccess, "coupon issued")
	case errors.Is(err, domain.ErrSoldOut):
		// 闸门放行但额度已被占满：把占位退掉，标记失败
		if cancelErr := s.gate.Cancel(ctx, couponID, userID); cancelErr != nil {
			logger.Ctx(ctx).Error().Err(cancelErr).Msg("failed to cancel gate reservation for sold-out issuance")
		}
		metrics.CouponIssueTotal.WithLabelValues("sold_out").Inc()
		return s.queue.SetStatus(ctx, couponID, userID, port.StatusFailed, "coupon sold out")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist issuance")
		// 瞬态错误：不写终态，让消息重试
		return err
	}
}
