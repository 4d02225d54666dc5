package ledger

import (
	"context"
	"errors"
	"time"

	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
)

var (
	ErrMissingSubscriber = errors.New("checkout event is missing subscriber identity")
	ErrMissingTier       = errors.New("checkout event is missing package tier")
	ErrInvalidCheckout   = errors.New("checkout event carries invalid metadata")
	ErrInvalidCount      = errors.New("session count must be positive")
)

// CheckoutInfo is the subset of a billing subscription-created event the
// ledger consumes.
type CheckoutInfo struct {
	UserID          int
	PackageType     string
	TotalSessions   int
	DurationDays    int
	SubscriptionRef string
	PriceCHF        int64
}

type Service interface {
	CreateFromCheckout(ctx context.Context, info CheckoutInfo) (*Package, error)
	CancelBySubscriptionRef(ctx context.Context, subscriptionRef string) error
	Debit(ctx context.Context, packageID, count int) error
	Credit(ctx context.Context, packageID, count int) error
	GetActiveForUser(ctx context.Context, userID int) (*Package, error)
	GetByID(ctx context.Context, packageID int) (*Package, error)
	ListByUser(ctx context.Context, userID int) ([]Package, error)
	ListAll(ctx context.Context) ([]Package, error)
	Cancel(ctx context.Context, packageID int) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateFromCheckout(ctx context.Context, info CheckoutInfo) (*Package, error) {
	if info.UserID <= 0 {
		return nil, ErrMissingSubscriber
	}

	pkgType, ok := ParsePackageType(info.PackageType)
	if !ok {
		if info.PackageType == "" {
			return nil, ErrMissingTier
		}
		return nil, ErrInvalidCheckout
	}

	if info.TotalSessions <= 0 || info.DurationDays <= 0 {
		return nil, ErrInvalidCheckout
	}

	var subRef *string
	if info.SubscriptionRef != "" {
		subRef = &info.SubscriptionRef
	}

	pkg, err := s.repo.CreatePackage(ctx, CreatePackageParams{
		UserID:               info.UserID,
		PackageType:          pkgType,
		TotalSessions:        info.TotalSessions,
		DurationDays:         info.DurationDays,
		StripeSubscriptionID: subRef,
		PriceCHF:             info.PriceCHF,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Package created from checkout",
		"package_id", pkg.ID,
		"user_id", pkg.UserID,
		"type", pkg.PackageType,
		"sessions", pkg.TotalSessions,
	)
	metrics.RecordPackageCreated(string(pkg.PackageType))

	return pkg, nil
}

func (s *service) CancelBySubscriptionRef(ctx context.Context, subscriptionRef string) error {
	return s.repo.CancelBySubscriptionRef(ctx, subscriptionRef)
}

func (s *service) Debit(ctx context.Context, packageID, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	if err := s.repo.Debit(ctx, packageID, count); err != nil {
		return err
	}
	metrics.RecordLedgerDebit(count)
	return nil
}

func (s *service) Credit(ctx context.Context, packageID, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	if err := s.repo.Credit(ctx, packageID, count); err != nil {
		return err
	}
	metrics.RecordLedgerCredit(count)
	return nil
}

func (s *service) GetActiveForUser(ctx context.Context, userID int) (*Package, error) {
	return s.repo.GetActiveForUser(ctx, userID)
}

func (s *service) GetByID(ctx context.Context, packageID int) (*Package, error) {
	return s.repo.GetByID(ctx, packageID)
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Package, error) {
	pkgs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	deriveStatuses(pkgs)
	return pkgs, nil
}

func (s *service) ListAll(ctx context.Context) ([]Package, error) {
	pkgs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	deriveStatuses(pkgs)
	return pkgs, nil
}

func (s *service) Cancel(ctx context.Context, packageID int) error {
	return s.repo.Cancel(ctx, packageID)
}

func deriveStatuses(pkgs []Package) {
	now := time.Now()
	for i := range pkgs {
		pkgs[i].Status = pkgs[i].EffectiveStatus(now)
	}
}
