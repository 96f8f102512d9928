package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/templateshop/internal/domain"
)

type productRow struct {
	domain.Product
	TagsJSON string `db:"tags"`
}

const productColumns = `id, title, price, category, tags, license_id, file_key, active, sales_count, download_count`

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var row productRow
	query := s.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE id = ?`)
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(row.TagsJSON), &row.Product.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal product tags: %w", err)
	}
	return &row.Product, nil
}

func (s *Store) GetLicense(ctx context.Context, id string) (*domain.License, error) {
	var license domain.License
	query := s.db.Rebind(`SELECT id, name, price, max_downloads, max_sales, active FROM licenses WHERE id = ?`)
	err := s.db.GetContext(ctx, &license, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query license %s: %w", id, err)
	}
	return &license, nil
}

// IncrementDownloadCounter bumps the product popularity counter.
func (s *Store) IncrementDownloadCounter(ctx context.Context, productID string) error {
	query := s.db.Rebind(`UPDATE products SET download_count = download_count + 1 WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("increment download counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// FindUserByEmail returns the id of the user registered under email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (string, error) {
	var id string
	query := s.db.Rebind(`SELECT id FROM users WHERE LOWER(email) = ?`)
	err := s.db.GetContext(ctx, &id, query, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query user by email: %w", err)
	}
	return id, nil
}

// UpsertLicense, UpsertProduct and UpsertUser load catalog fixtures.
func (s *Store) UpsertLicense(ctx context.Context, l *domain.License) error {
	query := s.db.Rebind(`INSERT INTO licenses (id, name, price, max_downloads, max_sales, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, price = excluded.price,
			max_downloads = excluded.max_downloads, max_sales = excluded.max_sales, active = excluded.active`)
	if _, err := s.db.ExecContext(ctx, query, l.ID, l.Name, l.Price, l.MaxDownloads, l.MaxSales, l.Active); err != nil {
		return fmt.Errorf("upsert license %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *domain.Product) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal product tags: %w", err)
	}
	query := s.db.Rebind(`INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, price = excluded.price,
			category = excluded.category, tags = excluded.tags, license_id = excluded.license_id,
			file_key = excluded.file_key, active = excluded.active`)
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Price, p.Category, string(tagsJSON), p.LicenseID, p.FileKey, p.Active, p.SalesCount, p.DownloadCount)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, id, email, name string) error {
	query := s.db.Rebind(`INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, name = excluded.name`)
	if _, err := s.db.ExecContext(ctx, query, id, email, name); err != nil {
		return fmt.Errorf("upsert user %s: %w", id, err)
	}
	return nil
}
