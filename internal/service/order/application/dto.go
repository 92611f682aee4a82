// internal/service/order/application/dto.go
package application

import "commerce/internal/service/order/domain"

// OrderItemRequest 下单请求中的一行商品。
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

// CreateOrderRequest 是接口层传入的下单请求。
type CreateOrderRequest struct {
	UserID       int64              `json:"userId"`
	OrderItems   []OrderItemRequest `json:"orderItems"`
	UserCouponID int64              `json:"userCouponId,omitempty"`
}

func (r *CreateOrderRequest) toDomainItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.OrderItems))
	for _, item := range r.OrderItems {
		items = append(items, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

// CreateOrderResponse 下单结果。
type CreateOrderResponse struct {
	OrderID        string            `json:"orderId"`
	Status         domain.OrderState `json:"status"`
	TotalAmount    int64             `json:"totalAmount"`
	DiscountAmount int64             `json:"discountAmount"`
	FinalAmount    int64             `json:"finalAmount"`
}
