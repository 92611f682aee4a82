// internal/service/product/domain/product.go
package domain

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Product 商品聚合根。Price 和库存以最小货币单位/件计。
type Product struct {
	ID        int64
	Name      string
	Price     int64
	Stock     int64
	UpdatedAt time.Time
}

// PopularProduct 热销榜单条目。
type PopularProduct struct {
	ProductID int64
	Name      string
	Price     int64
	SoldCount int64
	Rank      int
}
