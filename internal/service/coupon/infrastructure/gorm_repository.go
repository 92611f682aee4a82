// internal/service/coupon/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"commerce/internal/service/coupon/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormCouponRepository 实现 CouponRepository 和 IssuanceStore。
type GormCouponRepository struct {
	db *gorm.DB
}

func NewGormCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

func (r *GormCouponRepository) FindByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var model CouponModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, errors.Wrap(err, "failed to load coupon")
	}
	return toDomainCoupon(&model), nil
}

func (r *GormCouponRepository) FindAll(ctx context.Context) ([]*domain.Coupon, error) {
	var models []CouponModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list coupons")
	}
	out := make([]*domain.Coupon, 0, len(models))
	for i := range models {
		out = append(out, toDomainCoupon(&models[i]))
	}
	return out, nil
}

func (r *GormCouponRepository) Save(ctx context.Context, coupon *domain.Coupon) error {
	model := CouponModel{
		ID:             coupon.ID,
		Name:           coupon.Name,
		DiscountAmount: coupon.DiscountAmount,
		TotalQuantity:  coupon.TotalQuantity,
		IssuedQuantity: coupon.IssuedQuantity,
		Rule:           coupon.Rule,
	}
	if !coupon.ValidFrom.IsZero() {
		model.ValidFrom = sql.NullTime{Time: coupon.ValidFrom, Valid: true}
	}
	if !coupon.ValidTo.IsZero() {
		model.ValidTo = sql.NullTime{Time: coupon.ValidTo, Valid: true}
	}
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		return errors.Wrap(err, "failed to save coupon")
	}
	coupon.ID = model.ID
	return nil
}

// PersistIssuance 在一个事务里完成额度守卫和唯一性守卫：
//
//	UPDATE coupons SET issued_quantity = issued_quantity + 1
//	 WHERE id = ? AND issued_quantity < total_quantity
//	INSERT INTO user_coupons ...
//
// 条件更新不命中 → ErrSoldOut；唯一索引冲突 → ErrAlreadyIssued。
func (r *GormCouponRepository) PersistIssuance(ctx context.Context, couponID, userID int64) (*domain.UserCoupon, error) {
	var issued *domain.UserCoupon
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CouponModel{}).
			Where("id = ? AND issued_quantity < total_quantity", couponID).
			UpdateColumn("issued_quantity", gorm.Expr("issued_quantity + 1"))
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to increment issued quantity")
		}
		if res.RowsAffected == 0 {
			// 区分“券不存在”和“发完了”
			var count int64
			if err := tx.Model(&CouponModel{}).Where("id = ?", couponID).Count(&count).Error; err != nil {
				return errors.Wrap(err, "failed to check coupon existence")
			}
			if count == 0 {
				return domain.ErrCouponNotFound
			}
			return domain.ErrSoldOut
		}

		model := UserCouponModel{
			UserID:   userID,
			CouponID: couponID,
			Status:   string(domain.StatusIssued),
			IssuedAt: time.Now(),
		}
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyIssued
			}
			return errors.Wrap(err, "failed to create user coupon")
		}
		issued = toDomainUserCoupon(&model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// GormUserCouponRepository 实现 UserCouponRepository。
type GormUserCouponRepository struct {
	db *gorm.DB
}

func NewGormUserCouponRepository(db *gorm.DB) *GormUserCouponRepository {
	return &GormUserCouponRepository{db: db}
}

func (r *GormUserCouponRepository) FindByID(ctx context.Context, id int64) (*domain.UserCoupon, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *GormUserCouponRepository) FindByUserAndCoupon(ctx context.Context, userID, couponID int64) (*domain.UserCoupon, error) {
	return r.find(ctx, "user_id = ? AND coupon_id = ?", userID, couponID)
}

func (r *GormUserCouponRepository) find(ctx context.Context, query string, args ...interface{}) (*domain.UserCoupon, error) {
	var model UserCouponModel
	err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserCouponNotFound
		}
		return nil, errors.Wrap(err, "failed to load user coupon")
	}
	return toDomainUserCoupon(&model), nil
}

func (r *GormUserCouponRepository) FindByUser(ctx context.Context, userID int64) ([]*domain.UserCoupon, error) {
	var models []UserCouponModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("issued_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list user coupons")
	}
	out := make([]*domain.UserCoupon, 0, len(models))
	for i := range models {
		out = append(out, toDomainUserCoupon(&models[i]))
	}
	return out, nil
}

// UpdateStatus 的 WHERE 带上 from 状态守卫，和内存中的检查构成同一个原子单元，
// 两个并发核销只有先提交的那个能命中。
func (r *GormUserCouponRepository) UpdateStatus(ctx context.Context, uc *domain.UserCoupon, from domain.UserCouponStatus) error {
	updates := map[string]interface{}{"status": string(uc.Status)}
	if uc.UsedAt.IsZero() {
		updates["used_at"] = nil
	} else {
		updates["used_at"] = uc.UsedAt
	}
	res := r.db.WithContext(ctx).Model(&UserCouponModel{}).
		Where("id = ? AND status = ?", uc.ID, string(from)).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update user coupon status")
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidCoupon
	}
	return nil
}
