package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"commerce/internal/service/coupon/application"
	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/infrastructure"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newCouponRouter(t *testing.T, total int64, async bool) (*chi.Mux, int64) {
	t.Helper()
	ctx := context.Background()

	store := infrastructure.NewInMemoryCouponStore()
	coupon := &domain.Coupon{Name: "welcome", DiscountAmount: 1000, TotalQuantity: total}
	require.NoError(t, store.Save(ctx, coupon))
	gate := infrastructure.NewInMemoryIssueGate()
	require.NoError(t, gate.Prime(ctx, coupon.ID, total))

	tracer := otel.Tracer("test")
	issueService := application.NewIssueCouponService(store, store, gate, gate, tracer, async)
	queryService := application.NewCouponQueryService(store.UserCoupons(), gate, tracer)

	r := chi.NewRouter()
	NewCouponHandler(issueService, queryService).RegisterRoutes(r)
	return r, coupon.ID
}

func issueRequest(couponID, userID int64) *http.Request {
	url := fmt.Sprintf("/api/coupons/%d/issue?userId=%d", couponID, userID)
	return httptest.NewRequest(http.MethodPost, url, nil)
}

func TestIssueEndpointSync(t *testing.T) {
	router, couponID := newCouponRouter(t, 10, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, issueRequest(couponID, 1))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserCouponID   int64  `json:"userCouponId"`
		CouponID       int64  `json:"couponId"`
		DiscountAmount int64  `json:"discountAmount"`
		Status         string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, couponID, resp.CouponID)
	assert.Equal(t, int64(1000), resp.DiscountAmount)
	assert.Equal(t, "ISSUED", resp.Status)
}

func TestIssueEndpointAsyncReturnsAccepted(t *testing.T) {
	router, couponID := newCouponRouter(t, 10, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, issueRequest(couponID, 1))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		Status        string `json:"status"`
		QueuePosition int64  `json:"queuePosition"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "QUEUED", resp.Status)
	assert.Equal(t, int64(1), resp.QueuePosition)
}

func TestIssueEndpointFailures(t *testing.T) {
	router, couponID := newCouponRouter(t, 1, false)

	// 第一次成功
	router.ServeHTTP(httptest.NewRecorder(), issueRequest(couponID, 1))

	tests := []struct {
		name     string
		userID   int64
		wantCode string
	}{
		{name: "duplicate", userID: 1, wantCode: "ALREADY_ISSUED"},
		{name: "sold out", userID: 2, wantCode: "SOLD_OUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, issueRequest(couponID, tt.userID))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestIssueEndpointRequiresUserID(t *testing.T) {
	router, couponID := newCouponRouter(t, 1, false)

	url := fmt.Sprintf("/api/coupons/%d/issue", couponID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router, couponID := newCouponRouter(t, 10, true)

	// 未申请时
	url := fmt.Sprintf("/api/coupons/%d/issue/status?userId=1", couponID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status        string `json:"status"`
		QueuePosition int64  `json:"queuePosition"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_REQUESTED", resp.Status)

	// 排队后
	router.ServeHTTP(httptest.NewRecorder(), issueRequest(couponID, 1))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PROCESSING", resp.Status)
	assert.Equal(t, int64(1), resp.QueuePosition)
}

func TestUserCouponsEndpoint(t *testing.T) {
	router, couponID := newCouponRouter(t, 10, false)

	router.ServeHTTP(httptest.NewRecorder(), issueRequest(couponID, 5))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons/users/5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []struct {
		UserCouponID int64  `json:"userCouponId"`
		CouponID     int64  `json:"couponId"`
		Status       string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, couponID, resp[0].CouponID)
	assert.Equal(t, "ISSUED", resp[0].Status)

	// 没有券的用户返回空数组
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/coupons/users/6", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
