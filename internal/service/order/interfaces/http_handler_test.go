package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"commerce/internal/pkg/lock"
	balanceapp "commerce/internal/service/balance/application"
	balanceinfra "commerce/internal/service/balance/infrastructure"
	couponapp "commerce/internal/service/coupon/application"
	couponinfra "commerce/internal/service/coupon/infrastructure"
	"commerce/internal/service/coupon/infrastructure/rule"
	"commerce/internal/service/order/application"
	"commerce/internal/service/order/domain"
	orderinfra "commerce/internal/service/order/infrastructure"
	"commerce/internal/service/order/infrastructure/adapter"
	productapp "commerce/internal/service/product/application"
	productdomain "commerce/internal/service/product/domain"
	productinfra "commerce/internal/service/product/infrastructure"

	"github.com/go-chi/chi/v5"
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

type noopPublisher struct{}

func (noopPublisher) PublishOrderCompleted(_ context.Context, _ *domain.Order) error { return nil }

// newOrderRouter 用内存实现装配完整的下单流程。
// 商品 1（单价 30000，库存 10）、商品 2（单价 100，库存 1），用户 1 充值 100000。
func newOrderRouter(t *testing.T) *chi.Mux {
	t.Helper()
	ctx := context.Background()
	tracer := otel.Tracer("test")

	balanceSvc := balanceapp.NewBalanceService(
		balanceinfra.NewInMemoryBalanceRepository(), noopLocker{}, tracer, time.Second, time.Second)
	_, err := balanceSvc.Charge(ctx, 1, 100000)
	require.NoError(t, err)

	productRepo := productinfra.NewInMemoryProductRepository()
	productRepo.Seed(&productdomain.Product{ID: 1, Name: "keyboard", Price: 30000, Stock: 10})
	productRepo.Seed(&productdomain.Product{ID: 2, Name: "sticker", Price: 100, Stock: 1})
	productSvc := productapp.NewProductService(
		productRepo, productinfra.NewInMemorySalesRanking(), productinfra.NewInMemoryPopularCache(), tracer)

	couponStore := couponinfra.NewInMemoryCouponStore()
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	useSvc := couponapp.NewUseCouponService(couponStore, couponStore.UserCoupons(), engine, tracer)

	orderSvc := application.NewOrderApplicationService(
		orderinfra.NewInMemoryOrderRepository(),
		time.Second,
		tracer,
		adapter.NewBalanceLocalAdapter(balanceSvc),
		adapter.NewCouponLocalAdapter(useSvc),
		adapter.NewProductLocalAdapter(productSvc),
		noopPublisher{},
		nil,
	)

	r := chi.NewRouter()
	NewOrderHandler(orderSvc).RegisterRoutes(r)
	return r
}

func postOrder(router *chi.Mux, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	router := newOrderRouter(t)

	rec := postOrder(router, `{"userId":1,"orderItems":[{"productId":1,"quantity":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OrderID     string `json:"orderId"`
		Status      string `json:"status"`
		TotalAmount int64  `json:"totalAmount"`
		FinalAmount int64  `json:"finalAmount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, int64(60000), resp.TotalAmount)
	assert.Equal(t, int64(60000), resp.FinalAmount)

	// 下单成功后可以查回订单
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/orders/"+resp.OrderID, nil))
	require.Equal(t, http.StatusOK, rec2.Code)

	var order struct {
		Status string `json:"status"`
		Items  []struct {
			ProductID int64 `json:"productId"`
			Price     int64 `json:"price"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &order))
	assert.Equal(t, "COMPLETED", order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(30000), order.Items[0].Price)
}

func TestCreateOrderEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "missing user id",
			body:     `{"orderItems":[{"productId":1,"quantity":1}]}`,
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "empty items",
			body:     `{"userId":1,"orderItems":[]}`,
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "unknown product",
			body:     `{"userId":1,"orderItems":[{"productId":99,"quantity":1}]}`,
			wantCode: "PRODUCT_NOT_FOUND",
		},
		{
			name:     "out of stock",
			body:     `{"userId":1,"orderItems":[{"productId":2,"quantity":2}]}`,
			wantCode: "OUT_OF_STOCK",
		},
		{
			name:     "no balance account",
			body:     `{"userId":2,"orderItems":[{"productId":1,"quantity":1}]}`,
			wantCode: "INSUFFICIENT_BALANCE",
		},
		{
			name:     "unknown coupon",
			body:     `{"userId":1,"orderItems":[{"productId":1,"quantity":1}],"userCouponId":42}`,
			wantCode: "COUPON_NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newOrderRouter(t)
			rec := postOrder(router, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestCreateOrderEndpointRejectsMalformedJSON(t *testing.T) {
	router := newOrderRouter(t)
	rec := postOrder(router, `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	router := newOrderRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/no-such-order", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORDER_NOT_FOUND", resp.Code)
}
