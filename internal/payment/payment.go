// Package payment talks to the external payment processor.
package payment

import (
	"context"
)

type LineItem struct {
	ProductID  string
	Title      string
	UnitAmount int64
	Quantity   int
}

type SessionRequest struct {
	CustomerID    string
	CustomerEmail string
	Currency      string
	Items         []LineItem
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

type Processor interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
}
