package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/order"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Register(ctx context.Context, reg order.Registration) (*domain.Order, error)
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	List(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrderHandler struct {
	orders OrderService
	log    *slog.Logger
}

func NewOrderHandler(orders OrderService, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

type registerOrderRequest struct {
	PaymentID string       `json:"paymentId"`
	Currency  string       `json:"currency,omitempty"`
	Items     []order.Item `json:"items"`
}

func (h *OrderHandler) Register(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req registerOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.orders.Register(r.Context(), order.Registration{
		UserID:    user.ID,
		Email:     user.Email,
		PaymentID: req.PaymentID,
		Currency:  req.Currency,
		Items:     req.Items,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusCreated, order.NewView(created))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.orders.Get(r.Context(), currentUser(r).ID, chi.URLParam(r, "orderID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, order.NewView(found))
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), currentUser(r).ID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, order.NewViews(orders))
}
