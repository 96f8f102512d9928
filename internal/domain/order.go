package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusCompleted, OrderStatusFailed},
	OrderStatusCompleted: {OrderStatusRefunded},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFailed || s == OrderStatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

// OrderSource records which construction strategy produced the order.
type OrderSource string

const (
	OrderSourceMetadata   OrderSource = "metadata"
	OrderSourceCart       OrderSource = "cart"
	OrderSourceFallback   OrderSource = "fallback"
	OrderSourceRegistered OrderSource = "registered"
)

type OrderItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LicenseID string `json:"licenseId,omitempty"`
}

// Order is immutable once created except for Status.
type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem
	TotalAmount   int64
	Currency      string
	PaymentID     string
	SessionID     string
	Status        OrderStatus
	CustomerEmail string
	Source        OrderSource
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Total returns the amount in major currency units.
func (o *Order) Total() float64 {
	return float64(o.TotalAmount) / 100
}

// NormalizeCurrency upper-cases an ISO currency code, defaulting to USD.
func NormalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD"
	}
	return currency
}

// Grant is an entitlement to create or top up when an order completes.
type Grant struct {
	UserID       string
	ProductID    string
	LicenseID    string
	OrderID      string
	MaxDownloads int
}

// Finalization reports what completing an order did to the ledger and catalog.
type Finalization struct {
	Granted []Grant
	// SoldOut lists products whose license had no sales left; the order stands.
	SoldOut []string
}
