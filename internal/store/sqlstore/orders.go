package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type orderRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Items         string    `db:"items"`
	TotalAmount   int64     `db:"total_amount"`
	Currency      string    `db:"currency"`
	PaymentID     string    `db:"payment_id"`
	SessionID     string    `db:"session_id"`
	Status        string    `db:"status"`
	CustomerEmail string    `db:"customer_email"`
	Source        string    `db:"source"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *orderRow) toDomain() (*domain.Order, error) {
	order := &domain.Order{
		ID:            r.ID,
		UserID:        r.UserID,
		TotalAmount:   r.TotalAmount,
		Currency:      r.Currency,
		PaymentID:     r.PaymentID,
		SessionID:     r.SessionID,
		Status:        domain.OrderStatus(r.Status),
		CustomerEmail: r.CustomerEmail,
		Source:        domain.OrderSource(r.Source),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Items), &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return order, nil
}

const orderColumns = `id, user_id, items, total_amount, currency, payment_id, session_id, status, customer_email, source, created_at, updated_at`

// CreateOrder inserts order. A completed order is finalized in the same
// transaction. A second order for the same payment id fails with
// domain.ErrDuplicatePayment and changes nothing.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Finalization, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := s.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}

	result := &domain.Finalization{}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, insertErr := tx.ExecContext(ctx, query,
			order.ID,
			order.UserID,
			string(itemsJSON),
			order.TotalAmount,
			order.Currency,
			order.PaymentID,
			order.SessionID,
			string(order.Status),
			order.CustomerEmail,
			string(order.Source),
			order.CreatedAt,
			order.UpdatedAt)
		if insertErr != nil {
			if isUniqueViolation(insertErr) {
				return domain.ErrDuplicatePayment
			}
			return fmt.Errorf("insert order: %w", insertErr)
		}

		if order.Status != domain.OrderStatusCompleted {
			return nil
		}
		return s.finalize(ctx, tx, order, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionOrder moves the order paid by paymentID from one status to
// another with a conditional update. Reaching completed finalizes the order.
// It fails with domain.ErrOrderNotFound or domain.ErrIllegalTransition.
func (s *Store) TransitionOrder(ctx context.Context, paymentID string, from, to domain.OrderStatus) (*domain.Order, *domain.Finalization, error) {
	if !from.CanTransitionTo(to) {
		return nil, nil, domain.ErrIllegalTransition
	}

	var order *domain.Order
	result := &domain.Finalization{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE payment_id = ? AND status = ?`)
		res, err := tx.ExecContext(ctx, query, string(to), s.now(), paymentID, string(from))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order, err = getOrderByPaymentID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrIllegalTransition
		}
		if to != domain.OrderStatusCompleted {
			return nil
		}
		return s.finalize(ctx, tx, order, result)
	})
	if err != nil {
		return order, nil, err
	}
	return order, result, nil
}

// finalize grants one entitlement per distinct product/license line and
// counts one sale per product, skipping lines without a catalog product.
func (s *Store) finalize(ctx context.Context, tx *sqlx.Tx, order *domain.Order, result *domain.Finalization) error {
	seen := make(map[string]bool)
	for _, item := range order.Items {
		if item.ProductID == "" || seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true

		licenseID := item.LicenseID
		if licenseID == "" {
			query := tx.Rebind(`SELECT license_id FROM products WHERE id = ?`)
			err := tx.GetContext(ctx, &licenseID, query, item.ProductID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("query product license: %w", err)
			}
		}

		var license domain.License
		query := tx.Rebind(`SELECT id, name, price, max_downloads, max_sales, active FROM licenses WHERE id = ?`)
		err := tx.GetContext(ctx, &license, query, licenseID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("query license: %w", err)
		}

		grant := domain.Grant{
			UserID:       order.UserID,
			ProductID:    item.ProductID,
			LicenseID:    license.ID,
			OrderID:      order.ID,
			MaxDownloads: license.MaxDownloads,
		}
		if err := s.grant(ctx, tx, grant); err != nil {
			return err
		}
		result.Granted = append(result.Granted, grant)

		sold, err := incrementSales(ctx, tx, item.ProductID, license.MaxSales)
		if err != nil {
			return err
		}
		if !sold {
			result.SoldOut = append(result.SoldOut, item.ProductID)
		}
	}
	return nil
}

// incrementSales reports false when the product is already at its sales cap.
func incrementSales(ctx context.Context, tx *sqlx.Tx, productID string, maxSales int) (bool, error) {
	query := tx.Rebind(`UPDATE products SET sales_count = sales_count + 1
		WHERE id = ? AND (? = -1 OR sales_count < ?)`)
	res, err := tx.ExecContext(ctx, query, productID, maxSales, maxSales)
	if err != nil {
		return false, fmt.Errorf("increment sales count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment sales count: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	query := s.db.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetOrderByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return getOrderByPaymentID(ctx, s.db, paymentID)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getOrderByPaymentID(ctx context.Context, q queryer, paymentID string) (*domain.Order, error) {
	var row orderRow
	query := q.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE payment_id = ?`)
	err := sqlx.GetContext(ctx, q, &row, query, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by payment id: %w", err)
	}
	return row.toDomain()
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	var rows []orderRow
	query := s.db.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}

	orders := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		order, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
