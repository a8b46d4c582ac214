package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tehshkola/apiserver/internal/services"
	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// ShopHandler serves the coin shop: catalog listing and purchases.
type ShopHandler struct {
	shopService *services.ShopService
	logger      *zap.Logger
}

func NewShopHandler(shopService *services.ShopService, logger *zap.Logger) *ShopHandler {
	return &ShopHandler{
		shopService: shopService,
		logger:      logger,
	}
}

// ShopRouter registers shop routes on the given router. The gate has
// already required an applicant session for everything under /api/shop.
func ShopRouter(r chi.Router, handler *ShopHandler) {
	r.Get("/", handler.ListProducts)
	r.Post("/", handler.Purchase)
}

type ProductListResponse struct {
	Products []types.Product `json:"products"`
}

func (h *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.shopService.Products(r.Context())
	if err != nil {
		h.logger.Error("product list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	writeJSON(w, http.StatusOK, ProductListResponse{Products: products})
}

type PurchaseRequest struct {
	ProductID int    `json:"productId"`
	Size      string `json:"size"`
}

type PurchaseResponse struct {
	Success bool `json:"success"`
	Coins   int  `json:"coins"`
}

// Purchase buys one unit of a product for the session user and returns the
// remaining balance. Business-rule failures map onto distinct statuses:
// 404 unknown product, 422 bad size, 402 not enough coins, 409 sold out.
func (h *ShopHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	claims, ok := ApplicantFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "Некорректный товар")
		return
	}

	balance, err := h.shopService.Purchase(r.Context(), claims.UserID, claims.Name, req.ProductID, req.Size)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Товар не найден")
		case errors.Is(err, services.ErrInvalidSelection):
			writeError(w, http.StatusUnprocessableEntity, "Выберите размер")
		case errors.Is(err, services.ErrInsufficientFunds):
			writeError(w, http.StatusPaymentRequired, "Недостаточно монеток")
		case errors.Is(err, services.ErrOutOfStock):
			writeError(w, http.StatusConflict, "Нет в наличии")
		default:
			h.logger.Error("purchase failed", zap.Int("user_id", claims.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, PurchaseResponse{Success: true, Coins: balance})
}
