// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("order item quantity must be positive")
)

type OrderState string

const (
	StatePending   OrderState = "PENDING"
	StateCompleted OrderState = "COMPLETED"
	StateFailed    OrderState = "FAILED"
)

// OrderItem 下单时的商品行。Price 在校验步骤从商品快照填入。
type OrderItem struct {
	ProductID int64
	Quantity  int64
	Price     int64
}

// Order 订单聚合根。金额单位与余额一致。
type Order struct {
	ID             string
	UserID         int64
	Items          []OrderItem
	UserCouponID   int64 // 0 表示未使用优惠券
	TotalAmount    int64
	DiscountAmount int64
	FinalAmount    int64
	Status         OrderState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder 工厂函数，创建一个待处理订单，金额在流程中计算。
func NewOrder(id string, userID int64, items []OrderItem, userCouponID int64) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	now := time.Now()
	return &Order{
		ID:           id,
		UserID:       userID,
		Items:        items,
		UserCouponID: userCouponID,
		Status:       StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ApplyPricing 记录商品总价和券后应付金额。
func (o *Order) ApplyPricing(totalAmount, discountAmount int64) {
	o.TotalAmount = totalAmount
	o.DiscountAmount = discountAmount
	o.FinalAmount = totalAmount - discountAmount
	if o.FinalAmount < 0 {
		o.FinalAmount = 0
	}
}

func (o *Order) MarkAsCompleted() {
	o.Status = StateCompleted
	o.UpdatedAt = time.Now()
}

func (o *Order) MarkAsFailed() {
	o.Status = StateFailed
	o.UpdatedAt = time.Now()
}

// TotalQuantity 订单内商品总件数，供券规则使用。
func (o *Order) TotalQuantity() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}
