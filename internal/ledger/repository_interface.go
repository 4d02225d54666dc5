package ledger

import "context"

type CreatePackageParams struct {
	UserID               int
	PackageType          PackageType
	TotalSessions        int
	DurationDays         int
	StripeSubscriptionID *string
	PriceCHF             int64
}

type Repository interface {
	CreatePackage(ctx context.Context, params CreatePackageParams) (*Package, error)
	GetByID(ctx context.Context, id int) (*Package, error)
	GetActiveForUser(ctx context.Context, userID int) (*Package, error)
	ListByUser(ctx context.Context, userID int) ([]Package, error)
	ListAll(ctx context.Context) ([]Package, error)
	Debit(ctx context.Context, packageID, count int) error
	Credit(ctx context.Context, packageID, count int) error
	Cancel(ctx context.Context, packageID int) error
	CancelBySubscriptionRef(ctx context.Context, subscriptionRef string) error
}
