// internal/service/coupon/domain/coupon.go
package domain

import (
	"errors"
	"time"
)

var (
	ErrCouponNotFound     = errors.New("coupon: coupon not found")
	ErrUserCouponNotFound = errors.New("coupon: user coupon not found")
	ErrSoldOut            = errors.New("coupon: sold out")
	ErrAlreadyIssued      = errors.New("coupon: already issued to this user")
	ErrInvalidCoupon      = errors.New("coupon: coupon is not usable")
	ErrNotEligible        = errors.New("coupon: order does not satisfy coupon rule")
)

// Coupon 是先着顺发放的优惠券模板。
// IssuedQuantity 只增不减，发放成功数永远不超过 TotalQuantity。
type Coupon struct {
	ID             int64
	Name           string
	DiscountAmount int64
	TotalQuantity  int64
	IssuedQuantity int64

	// Rule 是一条 CEL 表达式，决定券在某笔订单上是否可用，
	// 例如 "order_amount >= 10000"。为空表示无门槛。
	Rule string

	ValidFrom time.Time
	ValidTo   time.Time
}

// Remaining 返回剩余可发数量。
func (c *Coupon) Remaining() int64 {
	return c.TotalQuantity - c.IssuedQuantity
}

// Active 检查当前时间是否在有效期内。零值时间表示不限。
func (c *Coupon) Active(now time.Time) bool {
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return false
	}
	if !c.ValidTo.IsZero() && now.After(c.ValidTo) {
		return false
	}
	return true
}

// UserCouponStatus 定义了用户优惠券的生命周期状态。
type UserCouponStatus string

const (
	StatusIssued UserCouponStatus = "ISSUED"
	StatusUsed   UserCouponStatus = "USED"
)

// UserCoupon 代表一个用户持有的一张具体的优惠券实例。
// (UserID, CouponID) 全局唯一，由数据库唯一索引兜底。
type UserCoupon struct {
	ID       int64
	UserID   int64
	CouponID int64
	Status   UserCouponStatus
	IssuedAt time.Time
	UsedAt   time.Time
}

// Use 核销。只有 ISSUED 状态可以核销。
func (uc *UserCoupon) Use(now time.Time) error {
	if uc.Status != StatusIssued {
		return ErrInvalidCoupon
	}
	uc.Status = StatusUsed
	uc.UsedAt = now
	return nil
}

// Restore 是 Use 的补偿，把券退回 ISSUED 状态。
func (uc *UserCoupon) Restore() error {
	if uc.Status != StatusUsed {
		return ErrInvalidCoupon
	}
	uc.Status = StatusIssued
	uc.UsedAt = time.Time{}
	return nil
}
