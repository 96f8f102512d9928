package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/payment"
)

const fallbackTitle = "Template purchase"

// orderLines is the resolved construction strategy for an order: exactly one
// of metadata, cart or fallback. A cart-built order clears the whole cart; a
// metadata-built order removes only the paid products from it.
type orderLines struct {
	source    domain.OrderSource
	items     []domain.OrderItem
	clearCart bool
	paid      []string
}

func (l orderLines) total() int64 {
	var total int64
	for _, item := range l.items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

func (r *Reconciler) resolveLines(ctx context.Context, log *slog.Logger, evt *payment.Event, cart *domain.Cart) (orderLines, error) {
	if ids := evt.ProductIDs(); len(ids) > 0 {
		quantities, ok := evt.Quantities()
		if !ok {
			log.DebugContext(ctx, "no checkout quantities in metadata, one of each product")
		}
		items, err := r.metadataItems(ctx, log, ids, quantities)
		if err != nil {
			return orderLines{}, err
		}
		if len(items) > 0 {
			return orderLines{source: domain.OrderSourceMetadata, items: items, paid: paidInCart(items, cart)}, nil
		}
	}

	if !cart.IsEmpty() {
		return orderLines{source: domain.OrderSourceCart, items: cartItems(cart), clearCart: true}, nil
	}

	amount, _ := evt.AmountMinor()
	return orderLines{
		source: domain.OrderSourceFallback,
		items: []domain.OrderItem{{
			Title:     fallbackTitle,
			UnitPrice: amount,
			Quantity:  1,
		}},
	}, nil
}

// metadataItems snapshots current catalog data for the paid product ids.
// Quantities are the ones recorded at checkout, aligned with ids; without
// them every product counts once.
func (r *Reconciler) metadataItems(ctx context.Context, log *slog.Logger, ids []string, quantities []int) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(ids))
	for i, id := range ids {
		product, err := r.catalog.GetProduct(ctx, id)
		if errors.Is(err, domain.ErrProductNotFound) {
			log.WarnContext(ctx, "paid product no longer in catalog", "product_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", id, err)
		}

		quantity := 1
		if i < len(quantities) {
			quantity = quantities[i]
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: product.Price,
			Quantity:  quantity,
			LicenseID: product.LicenseID,
		})
	}
	return items, nil
}

// paidInCart lists the paid products the cart still holds. When the cart
// could not be read every paid product is listed.
func paidInCart(items []domain.OrderItem, cart *domain.Cart) []string {
	paid := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := cart.Find(item.ProductID); ok || cart == nil {
			paid = append(paid, item.ProductID)
		}
	}
	return paid
}

func cartItems(cart *domain.Cart) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Title:     line.Title,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LicenseID: line.LicenseID,
		})
	}
	return items
}
