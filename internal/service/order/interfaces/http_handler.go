// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"errors"
	"net/http"

	"commerce/internal/pkg/web"
	balancedomain "commerce/internal/service/balance/domain"
	coupondomain "commerce/internal/service/coupon/domain"
	"commerce/internal/service/order/application"
	"commerce/internal/service/order/domain"
	productdomain "commerce/internal/service/product/domain"

	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	service *application.OrderApplicationService
}

func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/orders", h.createHandler)
	r.Get("/api/orders/{id}", h.getHandler)
}

type orderItemResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

type orderResponse struct {
	OrderID        string              `json:"orderId"`
	UserID         int64               `json:"userId"`
	Status         string              `json:"status"`
	TotalAmount    int64               `json:"totalAmount"`
	DiscountAmount int64               `json:"discountAmount"`
	FinalAmount    int64               `json:"finalAmount"`
	Items          []orderItemResponse `json:"items"`
}

func (h *OrderHandler) createHandler(w http.ResponseWriter, r *http.Request) {
	var req application.CreateOrderRequest
	if !web.Decode(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required")
		return
	}

	resp, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}
	web.JSON(w, http.StatusOK, resp)
}

// 下单是全有或全无的：任何资源不足都映射为一个明确的业务错误码。
func (h *OrderHandler) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder), errors.Is(err, domain.ErrInvalidQuantity):
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, productdomain.ErrProductNotFound):
		web.Error(w, http.StatusBadRequest, "PRODUCT_NOT_FOUND", "product does not exist")
	case errors.Is(err, productdomain.ErrInsufficientStock):
		web.Error(w, http.StatusBadRequest, "OUT_OF_STOCK", "insufficient product stock")
	case errors.Is(err, balancedomain.ErrInsufficientBalance):
		web.Error(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "insufficient balance")
	case errors.Is(err, balancedomain.ErrBalanceNotFound):
		web.Error(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "no balance account")
	case errors.Is(err, coupondomain.ErrUserCouponNotFound):
		web.Error(w, http.StatusBadRequest, "COUPON_NOT_FOUND", "user coupon does not exist")
	case errors.Is(err, coupondomain.ErrInvalidCoupon):
		web.Error(w, http.StatusBadRequest, "COUPON_NOT_USABLE", "coupon is not usable")
	case errors.Is(err, coupondomain.ErrNotEligible):
		web.Error(w, http.StatusBadRequest, "COUPON_NOT_ELIGIBLE", "order does not satisfy coupon rule")
	default:
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create order")
	}
}

func (h *OrderHandler) getHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "order id is required")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			web.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order does not exist")
			return
		}
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load order")
		return
	}

	resp := orderResponse{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		FinalAmount:    order.FinalAmount,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	web.JSON(w, http.StatusOK, resp)
}
