// Package reconcile turns verified payment events into orders. Every event
// may arrive more than once; handling the same event twice is a no-op.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/metrics"
	"github.com/fjod/templateshop/internal/payment"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Finalization, error)
	TransitionOrder(ctx context.Context, paymentID string, from, to domain.OrderStatus) (*domain.Order, *domain.Finalization, error)
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	FindUserByEmail(ctx context.Context, email string) (string, error)
}

type Carts interface {
	Snapshot(ctx context.Context, userID string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// Outcome names what handling an event did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomePending   Outcome = "pending"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomePromoted  Outcome = "promoted"
	OutcomeFailed    Outcome = "failed"
	OutcomeRefunded  Outcome = "refunded"
	OutcomeNoop      Outcome = "noop"
	OutcomeDropped   Outcome = "dropped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeError     Outcome = "error"
)

type Reconciler struct {
	verifier payment.Verifier
	orders   OrderStore
	catalog  Catalog
	carts    Carts
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func New(verifier payment.Verifier, orders OrderStore, catalog Catalog, carts Carts, log *slog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		verifier: verifier,
		orders:   orders,
		catalog:  catalog,
		carts:    carts,
		log:      log,
		metrics:  m,
	}
}

// HandleWebhook verifies the payload signature before acting on it. Only
// verification and parse failures are returned; reconciliation failures are
// logged and reported through the outcome.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	evt, err := r.verifier.Verify(payload, signature)
	if err != nil {
		r.log.WarnContext(ctx, "rejected payment webhook", "error", err)
		r.metrics.RecordWebhook("unknown", "rejected")
		return "", err
	}
	return r.Handle(ctx, evt), nil
}

// Handle dispatches a verified event.
func (r *Reconciler) Handle(ctx context.Context, evt *payment.Event) Outcome {
	log := r.log.With("event_id", evt.ID, "event_type", evt.Type, "payment_id", evt.PaymentID())

	var (
		outcome Outcome
		err     error
	)
	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentSucceeded:
		outcome, err = r.checkoutCompleted(ctx, log, evt)
	case payment.EventPaymentIntentSucceeded:
		outcome, err = r.transition(ctx, log, evt, domain.OrderStatusPending, domain.OrderStatusCompleted, OutcomePromoted)
	case payment.EventPaymentIntentFailed, payment.EventCheckoutAsyncPaymentFailed:
		outcome, err = r.transition(ctx, log, evt, domain.OrderStatusPending, domain.OrderStatusFailed, OutcomeFailed)
	case payment.EventChargeRefunded:
		outcome, err = r.transition(ctx, log, evt, domain.OrderStatusCompleted, domain.OrderStatusRefunded, OutcomeRefunded)
	default:
		outcome = OutcomeIgnored
		log.DebugContext(ctx, "ignoring payment event")
	}

	if err != nil {
		outcome = OutcomeError
		log.ErrorContext(ctx, "payment event reconciliation failed", "error", err)
	}
	r.metrics.RecordWebhook(evt.Type, string(outcome))
	return outcome
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, log *slog.Logger, evt *payment.Event) (Outcome, error) {
	paymentID := evt.PaymentID()
	if paymentID == "" {
		log.WarnContext(ctx, "checkout event without payment id")
		return OutcomeDropped, nil
	}

	existing, err := r.orders.GetOrderByPaymentID(ctx, paymentID)
	switch {
	case err == nil:
		if existing.Status == domain.OrderStatusPending && !evt.Unpaid() {
			return r.transition(ctx, log, evt, domain.OrderStatusPending, domain.OrderStatusCompleted, OutcomePromoted)
		}
		log.InfoContext(ctx, "order already exists for payment", "order_id", existing.ID, "status", existing.Status.String())
		return OutcomeDuplicate, nil
	case !errors.Is(err, domain.ErrOrderNotFound):
		return "", err
	}

	userID, err := r.customer(ctx, evt)
	if errors.Is(err, domain.ErrUserNotFound) {
		log.WarnContext(ctx, "dropping payment event: customer not found", "email", evt.Email())
		return OutcomeDropped, nil
	}
	if err != nil {
		return "", err
	}

	cart := r.cart(ctx, log, userID)
	lines, err := r.resolveLines(ctx, log, evt, cart)
	if err != nil {
		return "", err
	}

	status := domain.OrderStatusCompleted
	if evt.Unpaid() {
		status = domain.OrderStatusPending
	}
	total, ok := evt.AmountMinor()
	if !ok {
		total = lines.total()
	}

	order := &domain.Order{
		UserID:        userID,
		Items:         lines.items,
		TotalAmount:   total,
		Currency:      domain.NormalizeCurrency(evt.Object.Currency),
		PaymentID:     paymentID,
		SessionID:     evt.SessionID(),
		Status:        status,
		CustomerEmail: evt.Email(),
		Source:        lines.source,
	}

	fin, err := r.orders.CreateOrder(ctx, order)
	if errors.Is(err, domain.ErrDuplicatePayment) {
		log.InfoContext(ctx, "concurrent delivery already created the order")
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}

	r.reportFinalization(ctx, log, order, fin)
	r.metrics.RecordOrderCreated(string(order.Source))
	log.InfoContext(ctx, "order created from payment event",
		"order_id", order.ID, "user_id", userID, "source", string(order.Source), "total", order.TotalAmount, "status", order.Status.String())

	r.releaseCart(ctx, log, userID, lines)

	if status == domain.OrderStatusPending {
		return OutcomePending, nil
	}
	return OutcomeCreated, nil
}

// releaseCart empties what the order consumed from the cart. Failures are
// logged; the order is already committed.
func (r *Reconciler) releaseCart(ctx context.Context, log *slog.Logger, userID string, lines orderLines) {
	if lines.clearCart {
		if err := r.carts.ClearCart(ctx, userID); err != nil {
			log.ErrorContext(ctx, "failed to clear cart after order", "user_id", userID, "error", err)
		}
		return
	}
	for _, productID := range lines.paid {
		if _, err := r.carts.RemoveItem(ctx, userID, productID); err != nil {
			log.ErrorContext(ctx, "failed to remove paid item from cart", "user_id", userID, "product_id", productID, "error", err)
		}
	}
}

func (r *Reconciler) transition(ctx context.Context, log *slog.Logger, evt *payment.Event, from, to domain.OrderStatus, done Outcome) (Outcome, error) {
	paymentID := evt.PaymentID()
	if paymentID == "" {
		return OutcomeNoop, nil
	}

	order, fin, err := r.orders.TransitionOrder(ctx, paymentID, from, to)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		log.InfoContext(ctx, "no order for payment event")
		return OutcomeNoop, nil
	case errors.Is(err, domain.ErrIllegalTransition):
		status := ""
		if order != nil {
			status = order.Status.String()
		}
		log.InfoContext(ctx, "order status unchanged", "status", status, "wanted", to.String())
		return OutcomeNoop, nil
	case err != nil:
		return "", err
	}

	r.reportFinalization(ctx, log, order, fin)
	log.InfoContext(ctx, "order status changed", "order_id", order.ID, "from", from.String(), "to", to.String())
	return done, nil
}

func (r *Reconciler) reportFinalization(ctx context.Context, log *slog.Logger, order *domain.Order, fin *domain.Finalization) {
	if fin == nil {
		return
	}
	for _, productID := range fin.SoldOut {
		r.metrics.RecordOversell(productID)
		log.WarnContext(ctx, "license sold out at finalization, order kept", "order_id", order.ID, "product_id", productID)
	}
	if len(fin.Granted) > 0 {
		log.InfoContext(ctx, "entitlements granted", "order_id", order.ID, "count", len(fin.Granted))
	}
}

// customer prefers the user id in metadata and falls back to the email.
func (r *Reconciler) customer(ctx context.Context, evt *payment.Event) (string, error) {
	if id := evt.UserID(); id != "" {
		return id, nil
	}
	email := evt.Email()
	if email == "" {
		return "", domain.ErrUserNotFound
	}
	return r.catalog.FindUserByEmail(ctx, email)
}

func (r *Reconciler) cart(ctx context.Context, log *slog.Logger, userID string) *domain.Cart {
	cart, err := r.carts.Snapshot(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "cart unavailable while reconciling", "user_id", userID, "error", err)
		return nil
	}
	return cart
}
