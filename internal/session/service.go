package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fitcoach/internal/ledger"
	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/notify"
	"fitcoach/internal/user"
)

var (
	ErrSlotInPast      = errors.New("cannot book a session in the past")
	ErrInvalidSlot     = errors.New("invalid slot datetime, use RFC3339")
	ErrNotOwner        = errors.New("can only manage own sessions")
	ErrUnknownAttendee = errors.New("no account matches the attendee email")
)

// CapacityError names the shortfall between requested and remaining sessions.
type CapacityError struct {
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("requested %d sessions but only %d remaining", e.Requested, e.Remaining)
}

// CalendarBooking is the subset of a calendar booking-created event the
// session service consumes.
type CalendarBooking struct {
	BookingRef    string
	AttendeeEmail string
	Title         string
	StartTime     time.Time
	EndTime       time.Time
	MeetingLink   *string
}

type Service interface {
	BookRecurring(ctx context.Context, userID int, req RecurringBookingRequest) (*RecurringBookingResponse, error)
	CancelOwn(ctx context.Context, userID, sessionID int) error
	ListByUser(ctx context.Context, userID int) ([]Session, error)

	CreateFromCalendarBooking(ctx context.Context, booking CalendarBooking) (*Session, bool, error)
	CancelFromCalendar(ctx context.Context, bookingRef string) (*Session, error)
	RescheduleFromCalendar(ctx context.Context, bookingRef string, startTime, endTime time.Time) error

	GetStatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error)
	GetStatsByType(ctx context.Context, from, to time.Time) ([]TypeStat, error)
}

type service struct {
	repo          Repository
	ledgerService ledger.Service
	userRepo      user.Repository
	notifyService *notify.Service
}

func NewService(repo Repository, ledgerService ledger.Service, userRepo user.Repository, notifyService *notify.Service) Service {
	return &service{
		repo:          repo,
		ledgerService: ledgerService,
		userRepo:      userRepo,
		notifyService: notifyService,
	}
}

func (s *service) BookRecurring(ctx context.Context, userID int, req RecurringBookingRequest) (*RecurringBookingResponse, error) {
	now := time.Now()
	slots := make([]time.Time, 0, len(req.Slots))
	for _, raw := range req.Slots {
		slot, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, ErrInvalidSlot
		}
		if slot.Before(now) {
			return nil, ErrSlotInPast
		}
		slots = append(slots, slot)
	}

	pkg, err := s.ledgerService.GetByID(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.UserID != userID {
		return nil, ledger.ErrPackageNotFound
	}
	if len(slots) > pkg.SessionsRemaining {
		return nil, &CapacityError{Requested: len(slots), Remaining: pkg.SessionsRemaining}
	}

	batchID := uuid.New()
	sessions, err := s.repo.CreateRecurringBatch(ctx, userID, req.PackageID, batchID, slots, RecurringSessionMinutes)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientSessions) {
			// The balance moved between the precheck and the transaction.
			return nil, &CapacityError{Requested: len(slots), Remaining: pkg.SessionsRemaining}
		}
		return nil, err
	}

	metrics.RecordSessionsBooked(string(TypeCoachingFollowup), "recurring", len(sessions))
	metrics.RecordLedgerDebit(len(sessions))
	logger.Info("Recurring sessions booked",
		"user_id", userID,
		"package_id", req.PackageID,
		"count", len(sessions),
		"batch_id", batchID,
	)

	if u, err := s.userRepo.FindByID(ctx, userID); err == nil {
		s.notifyService.SendBookingConfirmation(ctx, u.Email, u.Phone, u.Name, len(sessions), slots[0])
	}

	return &RecurringBookingResponse{
		BatchID:  batchID,
		Created:  len(sessions),
		Sessions: sessions,
	}, nil
}

func (s *service) CancelOwn(ctx context.Context, userID, sessionID int) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.UserID != userID {
		return ErrNotOwner
	}

	if err := s.repo.Cancel(ctx, sessionID); err != nil {
		return err
	}

	s.creditForCancelled(ctx, sess)
	metrics.RecordSessionCancellation()

	if u, err := s.userRepo.FindByID(ctx, userID); err == nil {
		s.notifyService.SendCancellation(ctx, u.Email, u.Phone, u.Name, sess.SessionDate)
	}

	return nil
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Session, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) CreateFromCalendarBooking(ctx context.Context, booking CalendarBooking) (*Session, bool, error) {
	attendee, err := s.userRepo.FindByEmail(ctx, booking.AttendeeEmail)
	if err != nil {
		return nil, false, ErrUnknownAttendee
	}

	sessionType := ClassifyTitle(booking.Title)

	var packageID *int
	pkg, err := s.ledgerService.GetActiveForUser(ctx, attendee.ID)
	if err == nil {
		packageID = &pkg.ID
	} else if !errors.Is(err, ledger.ErrPackageNotFound) {
		return nil, false, err
	}

	duration := int(booking.EndTime.Sub(booking.StartTime).Minutes())
	if duration <= 0 {
		duration = RecurringSessionMinutes
	}

	sess, created, err := s.repo.CreateFromBooking(ctx, CreateBookingParams{
		UserID:          attendee.ID,
		PackageID:       packageID,
		SessionType:     sessionType,
		StartTime:       booking.StartTime,
		DurationMinutes: duration,
		CalcomBookingID: booking.BookingRef,
		MeetingLink:     booking.MeetingLink,
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return sess, false, nil
	}

	if sessionType != TypeDiscovery && packageID != nil {
		if err := s.ledgerService.Debit(ctx, *packageID, 1); err != nil {
			// The session stays but loses its package association so the
			// ledger never under-counts.
			logger.Warn("Booking created without debit, detaching package",
				"session_id", sess.ID,
				"package_id", *packageID,
				"reason", err,
			)
			if derr := s.repo.DetachPackage(ctx, sess.ID); derr != nil {
				return nil, false, derr
			}
			sess.PackageID = nil
		}
	}
	if packageID == nil && sessionType != TypeDiscovery {
		logger.Warn("Booking created without an active package",
			"session_id", sess.ID,
			"user_id", attendee.ID,
		)
	}

	metrics.RecordSessionsBooked(string(sessionType), "calendar", 1)

	return sess, true, nil
}

func (s *service) CancelFromCalendar(ctx context.Context, bookingRef string) (*Session, error) {
	sess, err := s.repo.GetByCalcomID(ctx, bookingRef)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Unknown reference: acknowledged as a no-op.
			return nil, nil
		}
		return nil, err
	}

	if err := s.repo.Cancel(ctx, sess.ID); err != nil {
		if errors.Is(err, ErrSessionNotFoundOrAlreadyCancelled) {
			return sess, nil
		}
		return nil, err
	}

	s.creditForCancelled(ctx, sess)
	metrics.RecordSessionCancellation()

	return sess, nil
}

func (s *service) RescheduleFromCalendar(ctx context.Context, bookingRef string, startTime, endTime time.Time) error {
	sess, err := s.repo.GetByCalcomID(ctx, bookingRef)
	if err != nil {
		return err
	}

	duration := int(endTime.Sub(startTime).Minutes())
	if duration <= 0 {
		duration = sess.DurationMinutes
	}

	// Capacity-neutral: date and duration change, the ledger does not.
	return s.repo.Reschedule(ctx, sess.ID, startTime, duration)
}

func (s *service) GetStatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	return s.repo.GetStatsByDay(ctx, from, to)
}

func (s *service) GetStatsByType(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	return s.repo.GetStatsByType(ctx, from, to)
}

func (s *service) creditForCancelled(ctx context.Context, sess *Session) {
	if sess.PackageID == nil || sess.SessionType == TypeDiscovery {
		return
	}

	err := s.ledgerService.Credit(ctx, *sess.PackageID, 1)
	if err != nil && !errors.Is(err, ledger.ErrNothingToCredit) {
		logger.Error("Failed to credit package after cancellation",
			"session_id", sess.ID,
			"package_id", *sess.PackageID,
			"error", err,
		)
	}
}
