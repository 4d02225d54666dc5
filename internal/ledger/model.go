package ledger

import "time"

type PackageType string
type PackageStatus string

const (
	TypeStarter  PackageType = "starter"
	TypeStandard PackageType = "standard"
	TypePremium  PackageType = "premium"
	TypeCustom   PackageType = "custom"

	StatusActive    PackageStatus = "active"
	StatusExpired   PackageStatus = "expired"
	StatusCancelled PackageStatus = "cancelled"
	StatusPaused    PackageStatus = "paused"
)

func ParsePackageType(s string) (PackageType, bool) {
	switch PackageType(s) {
	case TypeStarter, TypeStandard, TypePremium, TypeCustom:
		return PackageType(s), true
	}
	return "", false
}

// Package is a purchased, time-boxed allotment of coaching sessions.
// Invariant: sessions_used + sessions_remaining == total_sessions, enforced
// both here and by a CHECK constraint on the table.
type Package struct {
	ID                   int           `db:"id" json:"id"`
	UserID               int           `db:"user_id" json:"user_id"`
	PackageType          PackageType   `db:"package_type" json:"package_type"`
	TotalSessions        int           `db:"total_sessions" json:"total_sessions"`
	SessionsUsed         int           `db:"sessions_used" json:"sessions_used"`
	SessionsRemaining    int           `db:"sessions_remaining" json:"sessions_remaining"`
	StartDate            time.Time     `db:"start_date" json:"start_date"`
	EndDate              time.Time     `db:"end_date" json:"end_date"`
	Status               PackageStatus `db:"status" json:"status"`
	StripeSubscriptionID *string       `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	PriceCHF             int64         `db:"price_chf" json:"price_chf"`
	CreatedAt            time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus derives expiry lazily: no background process flips rows to
// expired, a package past its end date simply reads as expired.
func (p *Package) EffectiveStatus(now time.Time) PackageStatus {
	if p.Status == StatusActive && now.Truncate(24*time.Hour).After(p.EndDate) {
		return StatusExpired
	}
	return p.Status
}
