package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventPaymentIntentSucceeded        = "payment_intent.succeeded"
	EventPaymentIntentFailed           = "payment_intent.payment_failed"
	EventChargeRefunded                = "charge.refunded"

	MetadataUserID     = "userId"
	MetadataProductIDs = "productIds"
	MetadataQuantities = "quantities"
)

var (
	ErrInvalidSignature = &domain.Error{Kind: domain.KindValidation, Message: "invalid webhook signature"}
	ErrMalformedEvent   = &domain.Error{Kind: domain.KindValidation, Message: "malformed webhook event"}
)

type Verifier interface {
	Verify(payload []byte, header string) (*Event, error)
}

// Event is the subset of a processor event the reconciler consumes.
type Event struct {
	ID     string
	Type   string
	Object EventObject
}

type EventObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	PaymentIntent     ExpandableID      `json:"payment_intent"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       *int64            `json:"amount_total"`
	Amount            *int64            `json:"amount"`
	Currency          string            `json:"currency"`
	CustomerEmail     string            `json:"customer_email"`
	ReceiptEmail      string            `json:"receipt_email"`
	CustomerDetails   *CustomerDetails  `json:"customer_details"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type CustomerDetails struct {
	Email string `json:"email"`
}

// ExpandableID accepts either an id string or an expanded object with an id.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// PaymentID is the idempotency key of the payment the event refers to.
// Checkout sessions without a payment intent fall back to the session id.
func (e *Event) PaymentID() string {
	if strings.HasPrefix(e.Type, "payment_intent.") {
		return e.Object.ID
	}
	if pi := string(e.Object.PaymentIntent); pi != "" {
		return pi
	}
	if strings.HasPrefix(e.Type, "checkout.session.") {
		return e.Object.ID
	}
	return ""
}

// Unpaid reports a checkout session whose payment settles asynchronously.
func (e *Event) Unpaid() bool {
	return e.Object.PaymentStatus == "unpaid"
}

// SessionID is set only for checkout session events.
func (e *Event) SessionID() string {
	if strings.HasPrefix(e.Type, "checkout.session.") {
		return e.Object.ID
	}
	return ""
}

func (e *Event) Email() string {
	switch {
	case e.Object.CustomerDetails != nil && e.Object.CustomerDetails.Email != "":
		return e.Object.CustomerDetails.Email
	case e.Object.CustomerEmail != "":
		return e.Object.CustomerEmail
	default:
		return e.Object.ReceiptEmail
	}
}

// AmountMinor prefers amount_total and falls back to amount. A zero amount
// is a real amount; ok is false only when the payload carries neither field.
func (e *Event) AmountMinor() (amount int64, ok bool) {
	switch {
	case e.Object.AmountTotal != nil:
		return *e.Object.AmountTotal, true
	case e.Object.Amount != nil:
		return *e.Object.Amount, true
	default:
		return 0, false
	}
}

func (e *Event) UserID() string {
	if id := strings.TrimSpace(e.Object.Metadata[MetadataUserID]); id != "" {
		return id
	}
	return strings.TrimSpace(e.Object.ClientReferenceID)
}

// ProductIDs returns the ordered product ids carried in metadata.
func (e *Event) ProductIDs() []string {
	return SplitProductIDs(e.Object.Metadata[MetadataProductIDs])
}

// Quantities returns the per-product quantities recorded at checkout, aligned
// with ProductIDs. ok is false when the key is absent or does not line up.
func (e *Event) Quantities() (quantities []int, ok bool) {
	raw, present := e.Object.Metadata[MetadataQuantities]
	if !present {
		return nil, false
	}
	quantities, err := SplitQuantities(raw)
	if err != nil || len(quantities) != len(e.ProductIDs()) {
		return nil, false
	}
	return quantities, true
}

func JoinQuantities(quantities []int) string {
	parts := make([]string, 0, len(quantities))
	for _, q := range quantities {
		parts = append(parts, strconv.Itoa(q))
	}
	return strings.Join(parts, ",")
}

func SplitQuantities(raw string) ([]int, error) {
	var quantities []int
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		q, err := strconv.Atoi(part)
		if err != nil || q <= 0 {
			return nil, fmt.Errorf("invalid quantity %q", part)
		}
		quantities = append(quantities, q)
	}
	return quantities, nil
}

func JoinProductIDs(ids []string) string {
	return strings.Join(ids, ",")
}

func SplitProductIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret}
}

func (v *StripeVerifier) Verify(payload []byte, header string) (*Event, error) {
	if v.secret == "" || header == "" {
		return nil, ErrInvalidSignature
	}

	evt, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if evt.Data == nil {
		return nil, ErrMalformedEvent
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if err := json.Unmarshal(evt.Data.Raw, &out.Object); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrTooOld)
}
