// internal/service/balance/interfaces/http_handler.go
package interfaces

import (
	"errors"
	"net/http"
	"strconv"

	"commerce/internal/pkg/web"
	"commerce/internal/service/balance/application"
	"commerce/internal/service/balance/domain"

	"github.com/go-chi/chi/v5"
)

// BalanceHandler 封装了余额相关的 HTTP 处理器
type BalanceHandler struct {
	service *application.BalanceService
}

func NewBalanceHandler(service *application.BalanceService) *BalanceHandler {
	return &BalanceHandler{service: service}
}

// RegisterRoutes 在路由器上注册所有余额路由
func (h *BalanceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/users/balance/charge", h.chargeHandler)
	r.Get("/api/users/balance", h.getBalanceHandler)
}

type chargeRequest struct {
	UserID int64 `json:"userId"`
	Amount int64 `json:"amount"`
}

type chargeResponse struct {
	UserID             int64 `json:"userId"`
	BalanceAfterCharge int64 `json:"balanceAfterCharge"`
}

type balanceResponse struct {
	UserID  int64 `json:"userId"`
	Balance int64 `json:"balance"`
}

func (h *BalanceHandler) chargeHandler(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if !web.Decode(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required")
		return
	}

	newBalance, err := h.service.Charge(r.Context(), req.UserID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidAmount):
			web.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be between 1 and 1000000")
		case errors.Is(err, domain.ErrConflict):
			web.Error(w, http.StatusInternalServerError, "CONFLICT", "balance update conflicted, please retry")
		default:
			web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to charge balance")
		}
		return
	}

	web.JSON(w, http.StatusOK, chargeResponse{UserID: req.UserID, BalanceAfterCharge: newBalance})
}

func (h *BalanceHandler) getBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId query parameter is required")
		return
	}

	amount, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrBalanceNotFound) {
			web.Error(w, http.StatusNotFound, "BALANCE_NOT_FOUND", "no balance for user")
			return
		}
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load balance")
		return
	}

	web.JSON(w, http.StatusOK, balanceResponse{UserID: userID, Balance: amount})
}
