package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/checkout"
)

type CheckoutService interface {
	CreateSession(ctx context.Context, customer checkout.Customer, items []checkout.Item) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	log      *slog.Logger
}

func NewCheckoutHandler(svc CheckoutService, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, log: log}
}

type checkoutRequest struct {
	Items []checkout.Item `json:"items,omitempty"`
}

// CreateSession accepts an empty body, meaning "check out my cart".
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req checkoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.checkout.CreateSession(r.Context(), checkout.Customer{ID: user.ID, Email: user.Email}, req.Items)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, result)
}
