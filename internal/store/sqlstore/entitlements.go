package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const entitlementColumns = `id, user_id, product_id, license_id, order_id, download_count, max_downloads, last_download_at, created_at, updated_at`

// GrantEntitlement creates the entitlement or tops up an existing quota.
func (s *Store) GrantEntitlement(ctx context.Context, g domain.Grant) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.grant(ctx, tx, g)
	})
}

// grant upserts on (user, product, license). Repeat grants add their quota;
// unlimited on either side stays unlimited.
func (s *Store) grant(ctx context.Context, tx *sqlx.Tx, g domain.Grant) error {
	now := s.now()
	query := tx.Rebind(`INSERT INTO entitlements (` + entitlementColumns + `)
		VALUES (?, ?, ?, ?, ?, 0, ?, NULL, ?, ?)
		ON CONFLICT (user_id, product_id, license_id) DO UPDATE SET
			max_downloads = CASE
				WHEN entitlements.max_downloads = -1 OR excluded.max_downloads = -1 THEN -1
				ELSE entitlements.max_downloads + excluded.max_downloads
			END,
			order_id = excluded.order_id,
			updated_at = excluded.updated_at`)
	_, err := tx.ExecContext(ctx, query,
		uuid.NewString(), g.UserID, g.ProductID, g.LicenseID, g.OrderID, g.MaxDownloads, now, now)
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

func (s *Store) GetEntitlement(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error) {
	var ent domain.Entitlement
	query := s.db.Rebind(`SELECT ` + entitlementColumns + ` FROM entitlements
		WHERE user_id = ? AND product_id = ? AND license_id = ?`)
	err := s.db.GetContext(ctx, &ent, query, userID, productID, licenseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotEntitled
	}
	if err != nil {
		return nil, fmt.Errorf("query entitlement: %w", err)
	}
	return &ent, nil
}

// ConsumeDownload spends one unit of quota in a single conditional update,
// so concurrent requests at the limit cannot both succeed. It fails with
// domain.ErrNotEntitled when no record exists and domain.ErrQuotaExceeded
// when the finite quota is spent.
func (s *Store) ConsumeDownload(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error) {
	now := s.now()
	var ent domain.Entitlement
	query := s.db.Rebind(`UPDATE entitlements
		SET download_count = download_count + 1, last_download_at = ?, updated_at = ?
		WHERE user_id = ? AND product_id = ? AND license_id = ?
			AND (max_downloads = -1 OR download_count < max_downloads)
		RETURNING ` + entitlementColumns)
	err := s.db.GetContext(ctx, &ent, query, now, now, userID, productID, licenseID)
	if err == nil {
		return &ent, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume download: %w", err)
	}

	if _, err := s.GetEntitlement(ctx, userID, productID, licenseID); err != nil {
		return nil, err
	}
	return nil, domain.ErrQuotaExceeded
}

func (s *Store) ListEntitlements(ctx context.Context, userID string) ([]*domain.Entitlement, error) {
	var ents []*domain.Entitlement
	query := s.db.Rebind(`SELECT ` + entitlementColumns + ` FROM entitlements
		WHERE user_id = ? ORDER BY created_at DESC, id`)
	if err := s.db.SelectContext(ctx, &ents, query, userID); err != nil {
		return nil, fmt.Errorf("query entitlements: %w", err)
	}
	return ents, nil
}
