package ledger

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupLedgerMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func packageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "package_type", "total_sessions", "sessions_used", "sessions_remaining",
		"start_date", "end_date", "status", "stripe_subscription_id", "price_chf", "created_at", "updated_at",
	})
}

func TestCreatePackage(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	ctx := context.Background()
	subRef := "sub_123"
	now := time.Now()
	endDate := now.AddDate(0, 0, 90)

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO packages (user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		                      start_date, end_date, status, stripe_subscription_id, price_chf)
		VALUES ($1, $2, $3, 0, $3, CURRENT_DATE, CURRENT_DATE + $4 * INTERVAL '1 day', 'active', $5, $6)
		RETURNING id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		          start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
	`)).
		WithArgs(1, TypeStandard, 10, 90, &subRef, int64(120000)).
		WillReturnRows(packageRows().AddRow(
			1, 1, "standard", 10, 0, 10,
			now, endDate, "active", subRef, 120000, now, now,
		))

	pkg, err := repo.CreatePackage(ctx, CreatePackageParams{
		UserID:               1,
		PackageType:          TypeStandard,
		TotalSessions:        10,
		DurationDays:         90,
		StripeSubscriptionID: &subRef,
		PriceCHF:             120000,
	})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	require.Equal(t, 10, pkg.TotalSessions)
	require.Equal(t, 10, pkg.SessionsRemaining)
	require.Equal(t, 0, pkg.SessionsUsed)
}

func TestDebit(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE packages
		SET sessions_used = sessions_used + $2,
		    sessions_remaining = sessions_remaining - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND sessions_remaining >= $2
	`)).
		WithArgs(1, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Debit(context.Background(), 1, 3)
	require.NoError(t, err)
}

func TestDebit_Insufficient(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE packages`)).
		WithArgs(1, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// The follow-up read distinguishes a drained package from an inactive one.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(1).
		WillReturnRows(packageRows().AddRow(
			1, 1, "standard", 10, 9, 1,
			now, now.AddDate(0, 0, 30), "active", nil, 120000, now, now,
		))

	err := repo.Debit(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrInsufficientSessions)
}

func TestDebit_NotActive(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE packages`)).
		WithArgs(1, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(1).
		WillReturnRows(packageRows().AddRow(
			1, 1, "standard", 10, 2, 8,
			now, now.AddDate(0, 0, 30), "cancelled", nil, 120000, now, now,
		))

	err := repo.Debit(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrPackageNotActive)
}

func TestCredit(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE packages
		SET sessions_used = sessions_used - $2,
		    sessions_remaining = sessions_remaining + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND sessions_used >= $2
	`)).
		WithArgs(1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Credit(context.Background(), 1, 1)
	require.NoError(t, err)
}

func TestCredit_NothingToCredit(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE packages`)).
		WithArgs(1, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(1).
		WillReturnRows(packageRows().AddRow(
			1, 1, "standard", 10, 0, 10,
			now, now.AddDate(0, 0, 30), "active", nil, 120000, now, now,
		))

	err := repo.Credit(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrNothingToCredit)
}

func TestCancelBySubscriptionRef_Unknown(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE packages
		SET status = 'cancelled', updated_at = NOW()
		WHERE stripe_subscription_id = $1 AND status != 'cancelled'
	`)).
		WithArgs("sub_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CancelBySubscriptionRef(context.Background(), "sub_missing")
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func TestGetActiveForUser_NotFound(t *testing.T) {
	repo, mock, close := setupLedgerMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(7).
		WillReturnRows(packageRows())

	_, err := repo.GetActiveForUser(context.Background(), 7)
	require.ErrorIs(t, err, ErrPackageNotFound)
}
