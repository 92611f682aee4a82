// internal/service/coupon/interfaces/http_handler.go
package interfaces

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"commerce/internal/pkg/web"
	"commerce/internal/service/coupon/application"
	"commerce/internal/service/coupon/domain"

	"github.com/go-chi/chi/v5"
)

// CouponHandler 封装了优惠券相关的 HTTP 处理器
type CouponHandler struct {
	issueService *application.IssueCouponService
	queryService *application.CouponQueryService
}

func NewCouponHandler(issueService *application.IssueCouponService, queryService *application.CouponQueryService) *CouponHandler {
	return &CouponHandler{issueService: issueService, queryService: queryService}
}

// RegisterRoutes 在路由器上注册所有优惠券路由
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/coupons/{id}/issue", h.issueHandler)
	r.Get("/api/coupons/{id}/issue/status", h.statusHandler)
	r.Get("/api/coupons/users/{userId}", h.userCouponsHandler)
}

type issuedResponse struct {
	UserCouponID   int64  `json:"userCouponId"`
	CouponID       int64  `json:"couponId"`
	CouponName     string `json:"couponName"`
	DiscountAmount int64  `json:"discountAmount"`
	Status         string `json:"status"`
	IssuedAt       string `json:"issuedAt"`
}

type queuedResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	QueuePosition int64  `json:"queuePosition"`
	QueueSize     int64  `json:"queueSize"`
}

type statusResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
	QueueSize     int64  `json:"queueSize,omitempty"`
}

type userCouponResponse struct {
	UserCouponID int64  `json:"userCouponId"`
	CouponID     int64  `json:"couponId"`
	Status       string `json:"status"`
	IssuedAt     string `json:"issuedAt"`
	UsedAt       string `json:"usedAt,omitempty"`
}

func (h *CouponHandler) issueHandler(w http.ResponseWriter, r *http.Request) {
	couponID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || couponID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid coupon id")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	result, err := h.issueService.Issue(r.Context(), couponID, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSoldOut):
			web.Error(w, http.StatusBadRequest, "SOLD_OUT", "coupon is sold out")
		case errors.Is(err, domain.ErrAlreadyIssued):
			web.Error(w, http.StatusBadRequest, "ALREADY_ISSUED", "coupon already issued to this user")
		case errors.Is(err, domain.ErrCouponNotFound):
			web.Error(w, http.StatusBadRequest, "COUPON_NOT_FOUND", "coupon does not exist")
		case errors.Is(err, domain.ErrInvalidCoupon):
			web.Error(w, http.StatusBadRequest, "COUPON_INACTIVE", "coupon is not active")
		default:
			web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to issue coupon")
		}
		return
	}

	if result.Queued {
		web.JSON(w, http.StatusAccepted, queuedResponse{
			Status:        "QUEUED",
			Message:       "your request has been queued",
			QueuePosition: result.QueuePosition,
			QueueSize:     result.QueueSize,
		})
		return
	}

	web.JSON(w, http.StatusOK, issuedResponse{
		UserCouponID:   result.UserCoupon.ID,
		CouponID:       result.Coupon.ID,
		CouponName:     result.Coupon.Name,
		DiscountAmount: result.Coupon.DiscountAmount,
		Status:         string(result.UserCoupon.Status),
		IssuedAt:       result.UserCoupon.IssuedAt.Format(time.RFC3339),
	})
}

func (h *CouponHandler) statusHandler(w http.ResponseWriter, r *http.Request) {
	couponID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || couponID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid coupon id")
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	result, err := h.queryService.Status(r.Context(), couponID, userID)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load issue status")
		return
	}

	web.JSON(w, http.StatusOK, statusResponse{
		Status:        string(result.Status),
		Message:       result.Message,
		QueuePosition: result.QueuePosition,
		QueueSize:     result.QueueSize,
	})
}

func (h *CouponHandler) userCouponsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid user id")
		return
	}

	coupons, err := h.queryService.UserCoupons(r.Context(), userID)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load user coupons")
		return
	}

	out := make([]userCouponResponse, 0, len(coupons))
	for _, uc := range coupons {
		resp := userCouponResponse{
			UserCouponID: uc.ID,
			CouponID:     uc.CouponID,
			Status:       string(uc.Status),
			IssuedAt:     uc.IssuedAt.Format(time.RFC3339),
		}
		if !uc.UsedAt.IsZero() {
			resp.UsedAt = uc.UsedAt.Format(time.RFC3339)
		}
		out = append(out, resp)
	}
	web.JSON(w, http.StatusOK, out)
}
