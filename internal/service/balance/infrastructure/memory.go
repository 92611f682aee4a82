// internal/service/balance/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sync"

	"commerce/internal/service/balance/domain"
)

// InMemoryBalanceRepository 是 BalanceRepository 的内存实现，
// 供测试和本地开发（无 MySQL）使用。语义与 GORM 实现保持一致，
// 包括乐观锁版本冲突。
type InMemoryBalanceRepository struct {
	mu           sync.Mutex
	balances     map[int64]*domain.Balance
	transactions []*domain.BalanceTransaction
	nextTxID     int64
}

func NewInMemoryBalanceRepository() *InMemoryBalanceRepository {
	return &InMemoryBalanceRepository{
		balances: make(map[int64]*domain.Balance),
	}
}

func (r *InMemoryBalanceRepository) FindByUserID(_ context.Context, userID int64) (*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, domain.ErrBalanceNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *InMemoryBalanceRepository) Save(_ context.Context, balance *domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.balances[balance.UserID]
	if balance.Version == 0 {
		if ok {
			return domain.ErrConflict
		}
		copied := *balance
		copied.Version = 1
		r.balances[balance.UserID] = &copied
		balance.Version = 1
		return nil
	}
	if !ok || existing.Version != balance.Version {
		return domain.ErrConflict
	}
	copied := *balance
	copied.Version++
	r.balances[balance.UserID] = &copied
	balance.Version++
	return nil
}

func (r *InMemoryBalanceRepository) SaveTransaction(_ context.Context, tx *domain.BalanceTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTxID++
	tx.ID = r.nextTxID
	copied := *tx
	r.transactions = append(r.transactions, &copied)
	return nil
}

// Transactions 返回全部流水，测试断言用。
func (r *InMemoryBalanceRepository) Transactions() []*domain.BalanceTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.BalanceTransaction, len(r.transactions))
	copy(out, r.transactions)
	return out
}
