// internal/service/product/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"commerce/internal/service/product/domain"

	"gorm.io/gorm"
)

// ProductModel 对应 products 表。
type ProductModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	Name      string
	Price     int64
	Stock     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string { return "products" }

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Stock:     m.Stock,
		UpdatedAt: m.UpdatedAt,
	}
}

// GormProductRepository 实现 domain.ProductRepository。
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByID(ctx context.Context, productID int64) (*domain.Product, error) {
	var m ProductModel
	err := r.db.WithContext(ctx).First(&m, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainProduct(&m), nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, productIDs []int64) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Product, 0, len(models))
	for i := range models {
		out = append(out, toDomainProduct(&models[i]))
	}
	return out, nil
}

// DecrementStock 用条件 UPDATE 做原子扣减：
// UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?
// 影响行数为 0 说明库存不足或商品不存在。
func (r *GormProductRepository) DecrementStock(ctx context.Context, productID, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&ProductModel{}).
			Where("id = ?", productID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrProductNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (r *GormProductRepository) RestoreStock(ctx context.Context, productID, quantity int64) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
