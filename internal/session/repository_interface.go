package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateBookingParams carries a session originating from the external
// calendar provider. CalcomBookingID is the idempotency key.
type CreateBookingParams struct {
	UserID          int
	PackageID       *int
	SessionType     SessionType
	StartTime       time.Time
	DurationMinutes int
	CalcomBookingID string
	MeetingLink     *string
}

type Repository interface {
	// CreateFromBooking inserts a session keyed by the external booking
	// reference. A redelivered event returns the existing row with
	// created=false instead of a duplicate.
	CreateFromBooking(ctx context.Context, params CreateBookingParams) (*Session, bool, error)

	// CreateRecurringBatch inserts all sessions and debits the package in a
	// single transaction; either everything commits or nothing does.
	CreateRecurringBatch(ctx context.Context, userID, packageID int, batchID uuid.UUID, slots []time.Time, durationMinutes int) ([]Session, error)

	// DetachPackage clears the package association of a session whose debit
	// could not be applied.
	DetachPackage(ctx context.Context, id int) error

	GetByID(ctx context.Context, id int) (*Session, error)
	GetByCalcomID(ctx context.Context, calcomBookingID string) (*Session, error)
	ListByUser(ctx context.Context, userID int) ([]Session, error)
	Cancel(ctx context.Context, id int) error
	Reschedule(ctx context.Context, id int, startTime time.Time, durationMinutes int) error

	ListDueReminders(ctx context.Context, onOrAfter time.Time) ([]DueReminder, error)
	MarkReminderSent(ctx context.Context, id int) error

	GetStatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error)
	GetStatsByType(ctx context.Context, from, to time.Time) ([]TypeStat, error)
}
