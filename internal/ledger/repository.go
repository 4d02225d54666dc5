package ledger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrPackageNotFound      = errors.New("package not found")
	ErrPackageNotActive     = errors.New("package is not active")
	ErrInsufficientSessions = errors.New("insufficient sessions remaining")
	ErrNothingToCredit      = errors.New("package has no used sessions to credit")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePackage(ctx context.Context, params CreatePackageParams) (*Package, error) {
	query := `
		INSERT INTO packages (user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		                      start_date, end_date, status, stripe_subscription_id, price_chf)
		VALUES ($1, $2, $3, 0, $3, CURRENT_DATE, CURRENT_DATE + $4 * INTERVAL '1 day', 'active', $5, $6)
		RETURNING id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		          start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
	`

	var pkg Package
	err := r.db.GetContext(ctx, &pkg, query,
		params.UserID, params.PackageType, params.TotalSessions,
		params.DurationDays, params.StripeSubscriptionID, params.PriceCHF)
	if err != nil {
		return nil, err
	}

	return &pkg, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Package, error) {
	query := `
		SELECT id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		       start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
		FROM packages
		WHERE id = $1
	`

	var pkg Package
	err := r.db.GetContext(ctx, &pkg, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}

	return &pkg, nil
}

// GetActiveForUser returns the most recently purchased active package whose
// validity window still covers today. Expiry is checked here rather than by a
// background job.
func (r *repository) GetActiveForUser(ctx context.Context, userID int) (*Package, error) {
	query := `
		SELECT id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		       start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
		FROM packages
		WHERE user_id = $1
		  AND status = 'active'
		  AND end_date >= CURRENT_DATE
		ORDER BY created_at DESC
		LIMIT 1
	`

	var pkg Package
	err := r.db.GetContext(ctx, &pkg, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}

	return &pkg, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Package, error) {
	query := `
		SELECT id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		       start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
		FROM packages
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var pkgs []Package
	err := r.db.SelectContext(ctx, &pkgs, query, userID)
	if err != nil {
		return nil, err
	}

	return pkgs, nil
}

func (r *repository) ListAll(ctx context.Context) ([]Package, error) {
	query := `
		SELECT id, user_id, package_type, total_sessions, sessions_used, sessions_remaining,
		       start_date, end_date, status, stripe_subscription_id, price_chf, created_at, updated_at
		FROM packages
		ORDER BY created_at DESC
	`

	var pkgs []Package
	err := r.db.SelectContext(ctx, &pkgs, query)
	if err != nil {
		return nil, err
	}

	return pkgs, nil
}

// Debit consumes count sessions in a single conditional statement. A debit
// that would drive sessions_remaining below zero is rejected, never clamped,
// so the used+remaining=total invariant holds after every mutation.
func (r *repository) Debit(ctx context.Context, packageID, count int) error {
	query := `
		UPDATE packages
		SET sessions_used = sessions_used + $2,
		    sessions_remaining = sessions_remaining - $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND sessions_remaining >= $2
	`

	result, err := r.db.ExecContext(ctx, query, packageID, count)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return r.classifyDebitFailure(ctx, packageID)
	}

	return nil
}

func (r *repository) classifyDebitFailure(ctx context.Context, packageID int) error {
	pkg, err := r.GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	if pkg.Status != StatusActive {
		return ErrPackageNotActive
	}
	return ErrInsufficientSessions
}

// Credit restores count sessions after a cancellation. Crediting a package
// with fewer used sessions than count is refused; the caller treats that as
// a no-op since nothing was debited in the first place.
func (r *repository) Credit(ctx context.Context, packageID, count int) error {
	query := `
		UPDATE packages
		SET sessions_used = sessions_used - $2,
		    sessions_remaining = sessions_remaining + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND sessions_used >= $2
	`

	result, err := r.db.ExecContext(ctx, query, packageID, count)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, packageID); err != nil {
			return err
		}
		return ErrNothingToCredit
	}

	return nil
}

func (r *repository) Cancel(ctx context.Context, packageID int) error {
	query := `
		UPDATE packages
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'paused')
	`

	result, err := r.db.ExecContext(ctx, query, packageID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPackageNotFound
	}

	return nil
}

func (r *repository) CancelBySubscriptionRef(ctx context.Context, subscriptionRef string) error {
	query := `
		UPDATE packages
		SET status = 'cancelled', updated_at = NOW()
		WHERE stripe_subscription_id = $1 AND status != 'cancelled'
	`

	result, err := r.db.ExecContext(ctx, query, subscriptionRef)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPackageNotFound
	}

	return nil
}
