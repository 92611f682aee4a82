// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"commerce/internal/service/order/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderModel 对应 orders 表。
type OrderModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         int64  `gorm:"index"`
	UserCouponID   int64
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	Status         string `gorm:"size:20"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 对应 order_items 表，订单行一旦写入不再变更。
type OrderItemModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	OrderID   string `gorm:"index;size:36"`
	ProductID int64
	Quantity  int64
	Price     int64
}

func (OrderItemModel) TableName() string { return "order_items" }

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		UserCouponID:   o.UserCouponID,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, item := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return m
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:             m.ID,
		UserID:         m.UserID,
		UserCouponID:   m.UserCouponID,
		TotalAmount:    m.TotalAmount,
		DiscountAmount: m.DiscountAmount,
		FinalAmount:    m.FinalAmount,
		Status:         domain.OrderState(m.Status),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	for _, item := range m.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return o
}

// GormOrderRepository 实现 domain.OrderRepository。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 以订单 ID 为冲突键做 upsert：
// 首次写入插入订单头和订单行，后续只更新订单头的状态与金额。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit("Items").Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_amount", "discount_amount", "final_amount", "status", "updated_at",
			}),
		}).Create(model).Error
		if err != nil {
			return err
		}
		if len(model.Items) == 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&OrderItemModel{}).Where("order_id = ?", model.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		return tx.Create(&model.Items).Error
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var m OrderModel
	err := r.db.WithContext(ctx).Preload("Items").First(&m, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainOrder(&m), nil
}
