package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"commerce/internal/pkg/lock"
	"commerce/internal/service/balance/domain"
	"commerce/internal/service/balance/infrastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// localLocker 用进程内互斥量模拟分布式锁的串行化语义。
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Acquire(_ context.Context, key string, _, _ time.Duration) (lock.Handle, error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return &localHandle{m: m}, nil
}

type localHandle struct{ m *sync.Mutex }

func (h *localHandle) Release(_ context.Context) error {
	h.m.Unlock()
	return nil
}

func newTestService() (*BalanceService, *infrastructure.InMemoryBalanceRepository) {
	repo := infrastructure.NewInMemoryBalanceRepository()
	svc := NewBalanceService(repo, newLocalLocker(), otel.Tracer("test"), time.Second, time.Second)
	return svc, repo
}

func TestChargeCreatesAccount(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	after, err := svc.Charge(ctx, 1, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), after)

	balance, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	txs := repo.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionCharge, txs[0].Type)
	assert.Equal(t, int64(5000), txs[0].BalanceAfter)
}

func TestChargeRejectsInvalidAmounts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		amount int64
	}{
		{name: "zero", amount: 0},
		{name: "negative", amount: -100},
		{name: "above ceiling", amount: domain.MaxChargePerRequest + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Charge(ctx, 1, tt.amount)
			assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		})
	}

	// 非法请求不应开户
	_, err := svc.GetBalance(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}

func TestConcurrentChargesAddUp(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const workers = 50
	const amount = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Charge(ctx, 7, amount)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*amount), balance)
}

func TestDeductAndRefund(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Charge(ctx, 3, 10000)
	require.NoError(t, err)

	after, err := svc.Deduct(ctx, 3, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), after)

	_, err = svc.Deduct(ctx, 3, 7000)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	require.NoError(t, svc.Refund(ctx, 3, 4000))
	balance, err := svc.GetBalance(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
}

func TestDeductUnknownUser(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Deduct(context.Background(), 404, 100)
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}
