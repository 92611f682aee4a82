// internal/service/order/infrastructure/adapter/local_adapters.go
package adapter

import (
	"context"

	balanceapp "commerce/internal/service/balance/application"
	couponapp "commerce/internal/service/coupon/application"
	couponport "commerce/internal/service/coupon/domain/port"
	productapp "commerce/internal/service/product/application"
	productdomain "commerce/internal/service/product/domain"
)

// 单体部署形态下，订单流程的出站端口直接桥接到
// 同进程内各上下文的应用服务，替代跨服务的 HTTP/RPC 调用。

// BalanceLocalAdapter 实现 port.BalanceService。
type BalanceLocalAdapter struct {
	service *balanceapp.BalanceService
}

func NewBalanceLocalAdapter(service *balanceapp.BalanceService) *BalanceLocalAdapter {
	return &BalanceLocalAdapter{service: service}
}

func (a *BalanceLocalAdapter) Deduct(ctx context.Context, userID, amount int64) error {
	_, err := a.service.Deduct(ctx, userID, amount)
	return err
}

func (a *BalanceLocalAdapter) Refund(ctx context.Context, userID, amount int64) error {
	return a.service.Refund(ctx, userID, amount)
}

// CouponLocalAdapter 实现 port.CouponService。
type CouponLocalAdapter struct {
	service *couponapp.UseCouponService
}

func NewCouponLocalAdapter(service *couponapp.UseCouponService) *CouponLocalAdapter {
	return &CouponLocalAdapter{service: service}
}

func (a *CouponLocalAdapter) Use(ctx context.Context, userID, userCouponID, orderAmount, itemCount int64) (int64, error) {
	fact := couponport.Fact{OrderAmount: orderAmount, ItemCount: itemCount}
	return a.service.Use(ctx, userID, userCouponID, fact)
}

func (a *CouponLocalAdapter) Restore(ctx context.Context, _, userCouponID int64) error {
	return a.service.Restore(ctx, userCouponID)
}

// ProductLocalAdapter 实现 port.ProductService。
type ProductLocalAdapter struct {
	service *productapp.ProductService
}

func NewProductLocalAdapter(service *productapp.ProductService) *ProductLocalAdapter {
	return &ProductLocalAdapter{service: service}
}

func (a *ProductLocalAdapter) GetProduct(ctx context.Context, productID int64) (*productdomain.Product, error) {
	return a.service.GetProduct(ctx, productID)
}

func (a *ProductLocalAdapter) DecrementStock(ctx context.Context, productID, quantity int64) error {
	return a.service.DecrementStock(ctx, productID, quantity)
}

func (a *ProductLocalAdapter) RestoreStock(ctx context.Context, productID, quantity int64) error {
	return a.service.RestoreStock(ctx, productID, quantity)
}
