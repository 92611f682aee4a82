// internal/service/balance/domain/balance.go
package domain

import (
	"errors"
	"time"
)

// MaxChargePerRequest 单次充值上限。
const MaxChargePerRequest int64 = 1_000_000

var (
	ErrInvalidAmount       = errors.New("balance: amount must be positive and within the per-request ceiling")
	ErrInsufficientBalance = errors.New("balance: insufficient balance")
	ErrBalanceNotFound     = errors.New("balance: balance not found")
	// ErrConflict 表示乐观锁版本冲突，应用层会有限次重试。
	ErrConflict = errors.New("balance: concurrent modification conflict")
)

// Balance 是余额聚合的根实体。金额以最小货币单位的整数表示。
type Balance struct {
	UserID    int64
	Amount    int64
	Version   int64 // 乐观锁版本号
	UpdatedAt time.Time
}

// NewBalance 创建一个零余额账户。
func NewBalance(userID int64) *Balance {
	return &Balance{UserID: userID, UpdatedAt: time.Now()}
}

// Charge 充值。金额必须为正且不超过单次上限。
func (b *Balance) Charge(amount int64) error {
	if amount <= 0 || amount > MaxChargePerRequest {
		return ErrInvalidAmount
	}
	b.Amount += amount
	b.UpdatedAt = time.Now()
	return nil
}

// Deduct 扣减。余额不足时失败，余额永远不会为负。
func (b *Balance) Deduct(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if b.Amount < amount {
		return ErrInsufficientBalance
	}
	b.Amount -= amount
	b.UpdatedAt = time.Now()
	return nil
}

// TransactionType 区分余额流水的方向。
type TransactionType string

const (
	TransactionCharge TransactionType = "CHARGE"
	TransactionDeduct TransactionType = "DEDUCT"
)

// BalanceTransaction 是一条余额变动流水。
type BalanceTransaction struct {
	ID           int64
	UserID       int64
	Type         TransactionType
	Amount       int64
	BalanceAfter int64
	CreatedAt    time.Time
}
