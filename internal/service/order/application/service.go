// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/metrics"
	"commerce/internal/service/order/application/saga"
	"commerce/internal/service/order/domain"
	"commerce/internal/service/order/domain/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderApplicationService 只负责下单流程的编排，
// 资源扣减细节在各 Saga 步骤里。
type OrderApplicationService struct {
	orderRepo         domain.OrderRepository
	processingTimeout time.Duration
	tracer            trace.Tracer

	balanceService port.BalanceService
	couponService  port.CouponService
	productService port.ProductService
	publisher      port.OrderEventPublisher
	analytics      port.AnalyticsReporter
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	processingTimeout time.Duration,
	tracer trace.Tracer,
	balanceService port.BalanceService,
	couponService port.CouponService,
	productService port.ProductService,
	publisher port.OrderEventPublisher,
	analytics port.AnalyticsReporter,
) *OrderApplicationService {
	if processingTimeout <= 0 {
		processingTimeout = 10 * time.Second
	}
	return &OrderApplicationService{
		orderRepo: orderRepo, processingTimeout: processingTimeout, tracer: tracer,
		balanceService: balanceService, couponService: couponService,
		productService: productService, publisher: publisher, analytics: analytics,
	}
}

// CreateOrder 同步执行下单 Saga：定价 -> 核销券 -> 扣余额 -> 扣库存 -> 落库 -> 发事件。
// 任何一步失败都会按逆序补偿已预留的资源，订单落库为 FAILED。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	orderID := uuid.New().String()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("user.id", req.UserID),
	)

	orderEntity, err := domain.NewOrder(orderID, req.UserID, req.toDomainItems(), req.UserCouponID)
	if err != nil {
		span.RecordError(err)
		metrics.OrderTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// 每个订单的处理流程有独立的超时
	processingCtx, cancel := context.WithTimeout(ctx, s.processingTimeout)
	defer cancel()

	if err := s.orderRepo.Save(processingCtx, orderEntity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save initial order")
		return nil, err
	}

	orderContext := &saga.OrderContext{
		Ctx:            processingCtx,
		Order:          orderEntity,
		Tracer:         s.tracer,
		BalanceService: s.balanceService,
		CouponService:  s.couponService,
		ProductService: s.productService,
		Publisher:      s.publisher,
	}

	if err := s.buildChain().Handle(orderContext); err != nil {
		logger.Ctx(processingCtx).Warn().Err(err).Str("order_id", orderEntity.ID).
			Msg("order processing chain failed, triggering compensation")
		span.RecordError(err)
		span.SetStatus(codes.Error, "order processing failed in chain")
		metrics.OrderTotal.WithLabelValues("failed").Inc()

		// 补偿不应被请求超时打断
		compCtx := trace.ContextWithSpanContext(context.WithoutCancel(processingCtx), trace.SpanContextFromContext(processingCtx))
		orderContext.TriggerCompensation(compCtx)

		orderEntity.MarkAsFailed()
		if updateErr := s.orderRepo.Save(compCtx, orderEntity); updateErr != nil {
			logger.Ctx(compCtx).Error().Err(updateErr).Str("order_id", orderEntity.ID).
				Msg("CRITICAL: failed to update order status to FAILED after compensation")
			span.RecordError(updateErr, trace.WithAttributes(attribute.Bool("critical.error", true)))
		}
		return nil, err
	}

	metrics.OrderTotal.WithLabelValues("completed").Inc()
	span.AddEvent("order completed, all resources committed")

	s.reportAnalytics(processingCtx, orderEntity)

	return &CreateOrderResponse{
		OrderID:        orderEntity.ID,
		Status:         orderEntity.Status,
		TotalAmount:    orderEntity.TotalAmount,
		DiscountAmount: orderEntity.DiscountAmount,
		FinalAmount:    orderEntity.FinalAmount,
	}, nil
}

// GetOrder 查询订单。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

// reportAnalytics 上报成交数据到数据平台，失败只记日志。
func (s *OrderApplicationService) reportAnalytics(ctx context.Context, order *domain.Order) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.ReportOrderCompleted(ctx, order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).
			Msg("failed to report order to data platform")
	}
}

func (s *OrderApplicationService) buildChain() saga.Handler {
	orderProcessingChain := new(saga.PricingHandler)
	orderProcessingChain.
		SetNext(new(saga.CouponHandler)).
		SetNext(new(saga.BalanceHandler)).
		SetNext(new(saga.InventoryHandler)).
		SetNext(saga.NewCompleteOrderHandler(s.orderRepo)).
		SetNext(new(saga.NotificationHandler))

	return orderProcessingChain
}
