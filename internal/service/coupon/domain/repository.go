// internal/service/coupon/domain/repository.go
package domain

import "context"

// CouponRepository 定义了优惠券模板的持久化接口。
type CouponRepository interface {
	FindByID(ctx context.Context, id int64) (*Coupon, error)
	// FindAll 返回全部券模板，启动时初始化发放闸门用。
	FindAll(ctx context.Context) ([]*Coupon, error)
	Save(ctx context.Context, coupon *Coupon) error
}

// UserCouponRepository 定义了用户优惠券的持久化接口。
type UserCouponRepository interface {
	FindByID(ctx context.Context, id int64) (*UserCoupon, error)
	FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*UserCoupon, error)
	FindByUser(ctx context.Context, userID int64) ([]*UserCoupon, error)
	// UpdateStatus 持久化 Use/Restore 之后的状态变更。
	// 变更是条件写：只有当前状态仍为 from 时才生效，
	// 并发核销同一张券时只有一个调用方能赢，其余得到 ErrInvalidCoupon。
	UpdateStatus(ctx context.Context, uc *UserCoupon, from UserCouponStatus) error
}

// IssuanceStore 把“额度内发放一张券”作为一个原子单元持久化：
// 条件自增 issued_quantity（额度守卫）和插入 user_coupon（唯一索引守卫）
// 在同一个数据库事务里完成。超额返回 ErrSoldOut，重复返回 ErrAlreadyIssued。
type IssuanceStore interface {
	PersistIssuance(ctx context.Context, couponID, userID int64) (*UserCoupon, error)
}
