// internal/service/balance/domain/repository.go
package domain

import "context"

// BalanceRepository 定义了余额聚合的持久化接口。
// 它位于领域层，由基础设施层实现。
type BalanceRepository interface {
	// FindByUserID 查找用户余额，不存在时返回 ErrBalanceNotFound。
	FindByUserID(ctx context.Context, userID int64) (*Balance, error)

	// Save 以乐观锁方式保存余额。版本不匹配时返回 ErrConflict。
	Save(ctx context.Context, balance *Balance) error

	// SaveTransaction 追加一条余额流水。
	SaveTransaction(ctx context.Context, tx *BalanceTransaction) error
}
