// internal/service/coupon/infrastructure/gorm_model.go
package infrastructure

import (
	"database/sql"
	"time"

	"commerce/internal/service/coupon/domain"
)

// CouponModel 对应数据库中的 coupons 表
type CouponModel struct {
	ID             int64 `gorm:"primarykey"`
	Name           string
	DiscountAmount int64
	TotalQuantity  int64
	IssuedQuantity int64
	Rule           string `gorm:"type:text"`
	ValidFrom      sql.NullTime
	ValidTo        sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CouponModel) TableName() string {
	return "coupons"
}

// UserCouponModel 对应数据库中的 user_coupons 表。
// (user_id, coupon_id) 唯一索引是防止重复发放的最终防线。
type UserCouponModel struct {
	ID       int64 `gorm:"primarykey"`
	UserID   int64 `gorm:"uniqueIndex:idx_user_coupon"`
	CouponID int64 `gorm:"uniqueIndex:idx_user_coupon"`
	Status   string
	IssuedAt time.Time
	UsedAt   sql.NullTime
}

func (UserCouponModel) TableName() string {
	return "user_coupons"
}

func toDomainCoupon(m *CouponModel) *domain.Coupon {
	c := &domain.Coupon{
		ID:             m.ID,
		Name:           m.Name,
		DiscountAmount: m.DiscountAmount,
		TotalQuantity:  m.TotalQuantity,
		IssuedQuantity: m.IssuedQuantity,
		Rule:           m.Rule,
	}
	if m.ValidFrom.Valid {
		c.ValidFrom = m.ValidFrom.Time
	}
	if m.ValidTo.Valid {
		c.ValidTo = m.ValidTo.Time
	}
	return c
}

func toDomainUserCoupon(m *UserCouponModel) *domain.UserCoupon {
	uc := &domain.UserCoupon{
		ID:       m.ID,
		UserID:   m.UserID,
		CouponID: m.CouponID,
		Status:   domain.UserCouponStatus(m.Status),
		IssuedAt: m.IssuedAt,
	}
	if m.UsedAt.Valid {
		uc.UsedAt = m.UsedAt.Time
	}
	return uc
}
