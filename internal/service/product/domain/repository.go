// internal/service/product/domain/repository.go
package domain

import "context"

// ProductRepository 商品仓储端口。
type ProductRepository interface {
	FindByID(ctx context.Context, productID int64) (*Product, error)
	FindByIDs(ctx context.Context, productIDs []int64) ([]*Product, error)
	// DecrementStock 条件扣减：仅当剩余库存足够时才生效，
	// 不足时返回 ErrInsufficientStock。
	DecrementStock(ctx context.Context, productID, quantity int64) error
	// RestoreStock 补偿回补库存。
	RestoreStock(ctx context.Context, productID, quantity int64) error
}
