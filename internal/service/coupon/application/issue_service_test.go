package application_test

import (
	"context"
	"sync"
	"testing"

	"commerce/internal/service/coupon/application"
	"commerce/internal/service/coupon/domain"
	"commerce/internal/service/coupon/domain/port"
	"commerce/internal/service/coupon/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func newSyncIssueService(t *testing.T, total int64) (*application.IssueCouponService, *infrastructure.InMemoryCouponStore, *infrastructure.InMemoryIssueGate, int64) {
	t.Helper()
	store := infrastructure.NewInMemoryCouponStore()
	coupon := &domain.Coupon{Name: "first-purchase", DiscountAmount: 1000, TotalQuantity: total}
	require.NoError(t, store.Save(context.Background(), coupon))

	gate := infrastructure.NewInMemoryIssueGate()
	require.NoError(t, gate.Prime(context.Background(), coupon.ID, total))

	svc := application.NewIssueCouponService(store, store, gate, gate, otel.Tracer("test"), false)
	return svc, store, gate, coupon.ID
}

func TestIssueSync(t *testing.T) {
	svc, _, _, couponID := newSyncIssueService(t, 10)
	ctx := context.Background()

	result, err := svc.Issue(ctx, couponID, 1)
	require.NoError(t, err)
	assert.False(t, result.Queued)
	require.NotNil(t, result.UserCoupon)
	assert.Equal(t, domain.StatusIssued, result.UserCoupon.Status)
	assert.Equal(t, couponID, result.UserCoupon.CouponID)
}

func TestIssueRejectsDuplicates(t *testing.T) {
	svc, _, _, couponID := newSyncIssueService(t, 10)
	ctx := context.Background()

	_, err := svc.Issue(ctx, couponID, 1)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, couponID, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyIssued)
}

func TestIssueSoldOut(t *testing.T) {
	svc, _, _, couponID := newSyncIssueService(t, 1)
	ctx := context.Background()

	_, err := svc.Issue(ctx, couponID, 1)
	require.NoError(t, err)

	_, err = svc.Issue(ctx, couponID, 2)
	assert.ErrorIs(t, err, domain.ErrSoldOut)
}

func TestIssueUnknownCoupon(t *testing.T) {
	svc, _, _, _ := newSyncIssueService(t, 1)
	_, err := svc.Issue(context.Background(), 9999, 1)
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

// 并发领取时发放总量永远不超过额度，且没有用户领到两张。
func TestConcurrentIssueNeverExceedsQuota(t *testing.T) {
	const quota = 20
	const attempts = 200

	svc, store, _, couponID := newSyncIssueService(t, quota)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	issued := 0
	for i := 0; i < attempts; i++ {
		userID := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Issue(ctx, couponID, userID); err == nil {
				mu.Lock()
				issued++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, quota, issued)
	assert.Equal(t, int64(quota), store.IssuedCount(couponID))
}

func TestIssueAsyncQueues(t *testing.T) {
	store := infrastructure.NewInMemoryCouponStore()
	coupon := &domain.Coupon{Name: "flash-sale", DiscountAmount: 500, TotalQuantity: 5}
	require.NoError(t, store.Save(context.Background(), coupon))
	gate := infrastructure.NewInMemoryIssueGate()
	require.NoError(t, gate.Prime(context.Background(), coupon.ID, 5))

	svc := application.NewIssueCouponService(store, store, gate, gate, otel.Tracer("test"), true)
	ctx := context.Background()

	result, err := svc.Issue(ctx, coupon.ID, 1)
	require.NoError(t, err)
	assert.True(t, result.Queued)
	assert.Equal(t, int64(1), result.QueuePosition)

	// 排队后状态应为 PROCESSING
	status, _, _, _, err := gate.GetStatus(ctx, coupon.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, port.StatusProcessing, status)

	// 落库还没发生
	assert.Equal(t, int64(0), store.IssuedCount(coupon.ID))
}

func TestHandleIssueRequestedIsIdempotent(t *testing.T) {
	store := infrastructure.NewInMemoryCouponStore()
	coupon := &domain.Coupon{Name: "restock", DiscountAmount: 500, TotalQuantity: 5}
	require.NoError(t, store.Save(context.Background(), coupon))
	gate := infrastructure.NewInMemoryIssueGate()
	require.NoError(t, gate.Prime(context.Background(), coupon.ID, 5))

	svc := application.NewIssueCouponService(store, store, gate, gate, otel.Tracer("test"), true)
	ctx := context.Background()

	// 重复投递同一条消息
	require.NoError(t, svc.HandleIssueRequested(ctx, coupon.ID, 1))
	require.NoError(t, svc.HandleIssueRequested(ctx, coupon.ID, 1))

	assert.Equal(t, int64(1), store.IssuedCount(coupon.ID))
	status, _, _, _, err := gate.GetStatus(ctx, coupon.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, port.StatusSuccess, status)
}

func TestHandleIssueRequestedSoldOut(t *testing.T) {
	store := infrastructure.NewInMemoryCouponStore()
	coupon := &domain.Coupon{Name: "limited", DiscountAmount: 500, TotalQuantity: 1}
	require.NoError(t, store.Save(context.Background(), coupon))
	gate := infrastructure.NewInMemoryIssueGate()
	require.NoError(t, gate.Prime(context.Background(), coupon.ID, 1))

	svc := application.NewIssueCouponService(store, store, gate, gate, otel.Tracer("test"), true)
	ctx := context.Background()

	require.NoError(t, svc.HandleIssueRequested(ctx, coupon.ID, 1))
	require.NoError(t, svc.HandleIssueRequested(ctx, coupon.ID, 2))

	assert.Equal(t, int64(1), store.IssuedCount(coupon.ID))
	status, _, _, _, err := gate.GetStatus(ctx, coupon.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, port.StatusFailed, status)
}
