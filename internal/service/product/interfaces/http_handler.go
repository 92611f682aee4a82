// internal/service/product/interfaces/http_handler.go
package interfaces

import (
	"errors"
	"net/http"
	"strconv"

	"commerce/internal/pkg/web"
	"commerce/internal/service/product/application"
	"commerce/internal/service/product/domain"

	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	service *application.ProductService
}

func NewProductHandler(service *application.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/products/popular", h.popularHandler)
	r.Get("/api/products/{id}", h.getHandler)
}

type productResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Stock     int64  `json:"stock"`
}

type popularProductResponse struct {
	Rank      int    `json:"rank"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	SoldCount int64  `json:"soldCount"`
}

func (h *ProductHandler) getHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		web.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid product id")
		return
	}

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			web.Error(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product does not exist")
			return
		}
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load product")
		return
	}

	web.JSON(w, http.StatusOK, productResponse{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Stock:     product.Stock,
	})
}

func (h *ProductHandler) popularHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.PopularProducts(r.Context())
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load popular products")
		return
	}

	out := make([]popularProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, popularProductResponse{
			Rank:      p.Rank,
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			SoldCount: p.SoldCount,
		})
	}
	web.JSON(w, http.StatusOK, out)
}
