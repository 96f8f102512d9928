package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fjod/templateshop/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateOrder_PostgresUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := store.CreateOrder(context.Background(), newOrder("pi_1", "u1", domain.OrderStatusCompleted, line("p1", "standard", 1000)))
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_PostgresOtherErrorIsWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := store.CreateOrder(context.Background(), newOrder("pi_1", "u1", domain.OrderStatusPending))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrDuplicatePayment)
	assert.Contains(t, err.Error(), "insert order")
}

func TestQueriesUsePostgresPlaceholders(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM licenses WHERE id = $1")).
		WithArgs("standard").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "max_downloads", "max_sales", "active"}).
			AddRow("standard", "Standard", 0, -1, -1, true))

	license, err := store.GetLicense(context.Background(), "standard")
	require.NoError(t, err)
	assert.Equal(t, domain.Unlimited, license.MaxDownloads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}
