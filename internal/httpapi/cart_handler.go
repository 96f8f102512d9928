package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts CartService
	log   *slog.Logger
}

func NewCartHandler(carts CartService, log *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	*domain.Cart
	Total     int64 `json:"total"`
	ItemCount int   `json:"itemCount"`
}

func newCartResponse(cart *domain.Cart) cartResponse {
	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return cartResponse{Cart: cart, Total: cart.Total(), ItemCount: count}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart session")
		return
	}

	cart, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart session")
		return
	}

	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusCreated, newCartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart session")
		return
	}

	var req updateQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), owner, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart session")
		return
	}

	cart, err := h.carts.RemoveItem(r.Context(), owner, chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, newCartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	owner := cartOwner(r)
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication or cart session")
		return
	}

	if err := h.carts.ClearCart(r.Context(), owner); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: "cart cleared"})
}
