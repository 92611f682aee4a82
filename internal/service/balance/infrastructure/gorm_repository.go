// internal/service/balance/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"commerce/internal/service/balance/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// BalanceModel 对应数据库中的 balances 表
type BalanceModel struct {
	ID        uint  `gorm:"primarykey"`
	UserID    int64 `gorm:"uniqueIndex"`
	Amount    int64
	Version   int64
	UpdatedAt time.Time
}

func (BalanceModel) TableName() string {
	return "balances"
}

// BalanceTransactionModel 对应数据库中的 balance_transactions 表
type BalanceTransactionModel struct {
	ID           int64 `gorm:"primarykey"`
	UserID       int64 `gorm:"index"`
	Type         string
	Amount       int64
	BalanceAfter int64
	CreatedAt    time.Time
}

func (BalanceTransactionModel) TableName() string {
	return "balance_transactions"
}

// GormBalanceRepository 是 BalanceRepository 的 GORM 实现
type GormBalanceRepository struct {
	db *gorm.DB
}

func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

func (r *GormBalanceRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Balance, error) {
	var model BalanceModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, errors.Wrap(err, "failed to load balance")
	}
	return &domain.Balance{
		UserID:    model.UserID,
		Amount:    model.Amount,
		Version:   model.Version,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// Save 以乐观锁方式写回余额。Version 为 0 时视为开户插入。
func (r *GormBalanceRepository) Save(ctx context.Context, balance *domain.Balance) error {
	if balance.Version == 0 {
		model := BalanceModel{
			UserID:    balance.UserID,
			Amount:    balance.Amount,
			Version:   1,
			UpdatedAt: balance.UpdatedAt,
		}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			// 并发开户撞了唯一索引，交给上层按冲突重试
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrConflict
			}
			return errors.Wrap(err, "failed to create balance")
		}
		balance.Version = 1
		return nil
	}

	res := r.db.WithContext(ctx).Model(&BalanceModel{}).
		Where("user_id = ? AND version = ?", balance.UserID, balance.Version).
		Updates(map[string]interface{}{
			"amount":     balance.Amount,
			"version":    balance.Version + 1,
			"updated_at": balance.UpdatedAt,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update balance")
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	balance.Version++
	return nil
}

func (r *GormBalanceRepository) SaveTransaction(ctx context.Context, tx *domain.BalanceTransaction) error {
	model := BalanceTransactionModel{
		UserID:       tx.UserID,
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		CreatedAt:    tx.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return errors.Wrap(err, "failed to save balance transaction")
	}
	tx.ID = model.ID
	return nil
}
