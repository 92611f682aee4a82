package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"commerce/internal/pkg/lock"
	balanceapp "commerce/internal/service/balance/application"
	balancedomain "commerce/internal/service/balance/domain"
	balanceinfra "commerce/internal/service/balance/infrastructure"
	couponapp "commerce/internal/service/coupon/application"
	coupondomain "commerce/internal/service/coupon/domain"
	couponinfra "commerce/internal/service/coupon/infrastructure"
	"commerce/internal/service/coupon/infrastructure/rule"
	"commerce/internal/service/order/domain"
	orderinfra "commerce/internal/service/order/infrastructure"
	"commerce/internal/service/order/infrastructure/adapter"
	productapp "commerce/internal/service/product/application"
	productdomain "commerce/internal/service/product/domain"
	productinfra "commerce/internal/service/product/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type noopLocker struct{}

func (noopLocker) Acquire(_ context.Context, _ string, _, _ time.Duration) (lock.Handle, error) {
	return noopHandle{}, nil
}

type noopHandle struct{}

func (noopHandle) Release(_ context.Context) error { return nil }

// fakePublisher 记录发布的订单完成事件。
type fakePublisher struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (p *fakePublisher) PublishOrderCompleted(_ context.Context, order *domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.orders = append(p.orders, order)
	return nil
}

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

// orderFixture 把四个上下文的真实应用服务拼成单体形态的下单流程，
// 和 main 里的装配方式一致，只是存储换成内存实现。
type orderFixture struct {
	svc         *OrderApplicationService
	orderRepo   *orderinfra.InMemoryOrderRepository
	balance     *balanceapp.BalanceService
	products    *productapp.ProductService
	productRepo *productinfra.InMemoryProductRepository
	couponStore *couponinfra.InMemoryCouponStore
	publisher   *fakePublisher
}

func newOrderFixture(t *testing.T, couponRule string) (*orderFixture, int64) {
	t.Helper()
	ctx := context.Background()
	tracer := otel.Tracer("test")

	balanceSvc := balanceapp.NewBalanceService(
		balanceinfra.NewInMemoryBalanceRepository(), noopLocker{}, tracer, time.Second, time.Second)

	productRepo := productinfra.NewInMemoryProductRepository()
	productSvc := productapp.NewProductService(
		productRepo,
		productinfra.NewInMemorySalesRanking(),
		productinfra.NewInMemoryPopularCache(),
		tracer)

	couponStore := couponinfra.NewInMemoryCouponStore()
	coupon := &coupondomain.Coupon{Name: "order-test", DiscountAmount: 5000, TotalQuantity: 10, Rule: couponRule}
	require.NoError(t, couponStore.Save(ctx, coupon))
	userCoupon, err := couponStore.PersistIssuance(ctx, coupon.ID, 1)
	require.NoError(t, err)

	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	useSvc := couponapp.NewUseCouponService(couponStore, couponStore.UserCoupons(), engine, tracer)

	orderRepo := orderinfra.NewInMemoryOrderRepository()
	publisher := &fakePublisher{}

	svc := NewOrderApplicationService(
		orderRepo,
		time.Second,
		tracer,
		adapter.NewBalanceLocalAdapter(balanceSvc),
		adapter.NewCouponLocalAdapter(useSvc),
		adapter.NewProductLocalAdapter(productSvc),
		publisher,
		nil,
	)

	return &orderFixture{
		svc:         svc,
		orderRepo:   orderRepo,
		balance:     balanceSvc,
		products:    productSvc,
		productRepo: productRepo,
		couponStore: couponStore,
		publisher:   publisher,
	}, userCoupon.ID
}

func (f *orderFixture) seedProduct(id int64, name string, price, stock int64) {
	f.productRepo.Seed(&productdomain.Product{ID: id, Name: name, Price: price, Stock: stock})
}

func (f *orderFixture) charge(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.balance.Charge(context.Background(), userID, amount)
	require.NoError(t, err)
}

func (f *orderFixture) balanceOf(t *testing.T, userID int64) int64 {
	t.Helper()
	amount, err := f.balance.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return amount
}

func (f *orderFixture) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	p, err := f.products.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrderCompletes(t *testing.T) {
	f, userCouponID := newOrderFixture(t, "")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.charge(t, 1, 100000)

	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:       1,
		OrderItems:   []OrderItemRequest{{ProductID: 1, Quantity: 2}},
		UserCouponID: userCouponID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateCompleted, resp.Status)
	assert.Equal(t, int64(60000), resp.TotalAmount)
	assert.Equal(t, int64(5000), resp.DiscountAmount)
	assert.Equal(t, int64(55000), resp.FinalAmount)

	// 余额、库存、券都已提交
	assert.Equal(t, int64(45000), f.balanceOf(t, 1))
	assert.Equal(t, int64(8), f.stockOf(t, 1))
	uc, err := f.couponStore.UserCoupons().FindByID(ctx, userCouponID)
	require.NoError(t, err)
	assert.Equal(t, coupondomain.StatusUsed, uc.Status)

	saved, err := f.orderRepo.FindByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, saved.Status)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, int64(30000), saved.Items[0].Price)

	assert.Equal(t, 1, f.publisher.published())
}

func TestCreateOrderWithoutCoupon(t *testing.T) {
	f, _ := newOrderFixture(t, "")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.charge(t, 1, 100000)

	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:     1,
		OrderItems: []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), resp.DiscountAmount)
	assert.Equal(t, int64(30000), resp.FinalAmount)
	assert.Equal(t, int64(70000), f.balanceOf(t, 1))
}

// 库存不足时，已扣的余额、已核销的券、已扣的前序商品行全部回滚。
func TestCreateOrderCompensatesOnInsufficientStock(t *testing.T) {
	f, userCouponID := newOrderFixture(t, "")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.seedProduct(2, "mouse", 15000, 1)
	f.charge(t, 1, 100000)

	_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID: 1,
		OrderItems: []OrderItemRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 2},
		},
		UserCouponID: userCouponID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, productdomain.ErrInsufficientStock)

	assert.Equal(t, int64(100000), f.balanceOf(t, 1))
	assert.Equal(t, int64(10), f.stockOf(t, 1))
	assert.Equal(t, int64(1), f.stockOf(t, 2))

	uc, findErr := f.couponStore.UserCoupons().FindByID(ctx, userCouponID)
	require.NoError(t, findErr)
	assert.Equal(t, coupondomain.StatusIssued, uc.Status)

	assert.Equal(t, 0, f.publisher.published())
	assertOnlyFailedOrder(t, f.orderRepo)
}

func TestCreateOrderInsufficientBalance(t *testing.T) {
	f, _ := newOrderFixture(t, "")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.charge(t, 1, 1000)

	_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:     1,
		OrderItems: []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, balancedomain.ErrInsufficientBalance)

	// 余额扣减在库存之前，失败时不应动库存
	assert.Equal(t, int64(1000), f.balanceOf(t, 1))
	assert.Equal(t, int64(10), f.stockOf(t, 1))
	assert.Equal(t, 0, f.publisher.published())
}

func TestCreateOrderIneligibleCoupon(t *testing.T) {
	f, userCouponID := newOrderFixture(t, "order_amount >= 100000")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.charge(t, 1, 100000)

	_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:       1,
		OrderItems:   []OrderItemRequest{{ProductID: 1, Quantity: 1}},
		UserCouponID: userCouponID,
	})
	assert.ErrorIs(t, err, coupondomain.ErrNotEligible)

	assert.Equal(t, int64(100000), f.balanceOf(t, 1))
	assert.Equal(t, int64(10), f.stockOf(t, 1))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	f, _ := newOrderFixture(t, "")

	f.charge(t, 1, 100000)

	_, err := f.svc.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID:     1,
		OrderItems: []OrderItemRequest{{ProductID: 99, Quantity: 1}},
	})
	assert.ErrorIs(t, err, productdomain.ErrProductNotFound)
	assert.Equal(t, int64(100000), f.balanceOf(t, 1))
}

func TestCreateOrderRejectsInvalidRequests(t *testing.T) {
	f, _ := newOrderFixture(t, "")
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{UserID: 1})
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:     1,
		OrderItems: []OrderItemRequest{{ProductID: 1, Quantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

// 事件发布失败不影响订单结果，资源保持已提交状态。
func TestCreateOrderPublishFailureDoesNotRollBack(t *testing.T) {
	f, _ := newOrderFixture(t, "")
	ctx := context.Background()

	f.seedProduct(1, "keyboard", 30000, 10)
	f.charge(t, 1, 100000)
	f.publisher.err = errors.New("broker unavailable")

	resp, err := f.svc.CreateOrder(ctx, &CreateOrderRequest{
		UserID:     1,
		OrderItems: []OrderItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, resp.Status)
	assert.Equal(t, int64(70000), f.balanceOf(t, 1))
	assert.Equal(t, int64(9), f.stockOf(t, 1))
}

func assertOnlyFailedOrder(t *testing.T, repo *orderinfra.InMemoryOrderRepository) {
	t.Helper()
	orders := repo.All()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.StateFailed, orders[0].Status)
}
