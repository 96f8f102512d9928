package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindForbidden     Kind = "forbidden"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindUnavailable   Kind = "unavailable"
	KindUpstream      Kind = "upstream"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

// Error is a sentinel error carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrInvalidQuantity   = newError(KindValidation, "quantity must be greater than zero")
	ErrEmptyCart         = newError(KindValidation, "cart is empty, nothing to checkout")
	ErrItemNotFound      = newError(KindNotFound, "item not found in cart")
	ErrProductNotFound   = newError(KindNotFound, "product not found")
	ErrLicenseNotFound   = newError(KindNotFound, "license not found")
	ErrOrderNotFound     = newError(KindNotFound, "order not found")
	ErrUserNotFound      = newError(KindNotFound, "user not found")
	ErrNotEntitled       = newError(KindForbidden, "no purchase found for this product and license")
	ErrForbidden         = newError(KindForbidden, "access to this resource is forbidden")
	ErrQuotaExceeded     = newError(KindQuotaExceeded, "download limit reached for this license")
	ErrCartQuotaExceeded = newError(KindQuotaExceeded, "quantity exceeds the license download limit")
	ErrDuplicatePayment  = newError(KindConflict, "order for this payment already exists")
	ErrIllegalTransition = newError(KindConflict, "illegal transition of order status")
	ErrUpstream          = newError(KindUpstream, "payment processor unavailable")
	ErrRateLimited       = newError(KindRateLimited, "too many requests, slow down")
)

// ProductUnavailableError lists every product that can no longer be purchased.
type ProductUnavailableError struct {
	IDs []string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("products unavailable: %s", strings.Join(e.IDs, ", "))
}

// KindOf reports the Kind of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	var unavailable *ProductUnavailableError
	if errors.As(err, &unavailable) {
		return KindUnavailable
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
