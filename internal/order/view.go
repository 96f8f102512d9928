package order

import (
	"time"

	"github.com/fjod/templateshop/internal/domain"
)

// View is the JSON shape of an order.
type View struct {
	ID            string             `json:"id"`
	UserID        string             `json:"userId"`
	Items         []domain.OrderItem `json:"items"`
	TotalAmount   int64              `json:"totalAmount"`
	Total         float64            `json:"total"`
	Currency      string             `json:"currency"`
	PaymentID     string             `json:"paymentId"`
	SessionID     string             `json:"sessionId,omitempty"`
	Status        string             `json:"status"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	Source        string             `json:"source"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func NewView(o *domain.Order) View {
	items := o.Items
	if items == nil {
		items = []domain.OrderItem{}
	}
	return View{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		TotalAmount:   o.TotalAmount,
		Total:         o.Total(),
		Currency:      o.Currency,
		PaymentID:     o.PaymentID,
		SessionID:     o.SessionID,
		Status:        o.Status.String(),
		CustomerEmail: o.CustomerEmail,
		Source:        string(o.Source),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func NewViews(orders []*domain.Order) []View {
	views := make([]View, 0, len(orders))
	for _, o := range orders {
		views = append(views, NewView(o))
	}
	return views
}
