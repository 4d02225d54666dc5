package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"fitcoach/internal/auth"
	"fitcoach/internal/ledger"
	"fitcoach/internal/notify"
	"fitcoach/internal/user"
)

// Mock repositories
type MockSessionRepo struct{ mock.Mock }
type MockLedgerService struct{ mock.Mock }
type MockUserRepo struct{ mock.Mock }

func (m *MockSessionRepo) CreateFromBooking(ctx context.Context, params CreateBookingParams) (*Session, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*Session), args.Bool(1), args.Error(2)
}

func (m *MockSessionRepo) CreateRecurringBatch(ctx context.Context, userID, packageID int, batchID uuid.UUID, slots []time.Time, durationMinutes int) ([]Session, error) {
	args := m.Called(ctx, userID, packageID, batchID, slots, durationMinutes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Session), args.Error(1)
}

func (m *MockSessionRepo) DetachPackage(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionRepo) GetByID(ctx context.Context, id int) (*Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockSessionRepo) GetByCalcomID(ctx context.Context, calcomBookingID string) (*Session, error) {
	args := m.Called(ctx, calcomBookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockSessionRepo) ListByUser(ctx context.Context, userID int) ([]Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Session), args.Error(1)
}

func (m *MockSessionRepo) Cancel(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionRepo) Reschedule(ctx context.Context, id int, startTime time.Time, durationMinutes int) error {
	return m.Called(ctx, id, startTime, durationMinutes).Error(0)
}

func (m *MockSessionRepo) ListDueReminders(ctx context.Context, onOrAfter time.Time) ([]DueReminder, error) {
	args := m.Called(ctx, onOrAfter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DueReminder), args.Error(1)
}

func (m *MockSessionRepo) MarkReminderSent(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionRepo) GetStatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DayStat), args.Error(1)
}

func (m *MockSessionRepo) GetStatsByType(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]TypeStat), args.Error(1)
}

func (m *MockLedgerService) CreateFromCheckout(ctx context.Context, info ledger.CheckoutInfo) (*ledger.Package, error) {
	args := m.Called(ctx, info)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Package), args.Error(1)
}

func (m *MockLedgerService) CancelBySubscriptionRef(ctx context.Context, subscriptionRef string) error {
	return m.Called(ctx, subscriptionRef).Error(0)
}

func (m *MockLedgerService) Debit(ctx context.Context, packageID, count int) error {
	return m.Called(ctx, packageID, count).Error(0)
}

func (m *MockLedgerService) Credit(ctx context.Context, packageID, count int) error {
	return m.Called(ctx, packageID, count).Error(0)
}

func (m *MockLedgerService) GetActiveForUser(ctx context.Context, userID int) (*ledger.Package, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Package), args.Error(1)
}

func (m *MockLedgerService) GetByID(ctx context.Context, packageID int) (*ledger.Package, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Package), args.Error(1)
}

func (m *MockLedgerService) ListByUser(ctx context.Context, userID int) ([]ledger.Package, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Package), args.Error(1)
}

func (m *MockLedgerService) ListAll(ctx context.Context) ([]ledger.Package, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Package), args.Error(1)
}

func (m *MockLedgerService) Cancel(ctx context.Context, packageID int) error {
	return m.Called(ctx, packageID).Error(0)
}

func (m *MockUserRepo) Create(ctx context.Context, name, email string, phone *string, passwordHash string, role auth.Role) (*user.User, error) {
	args := m.Called(ctx, name, email, phone, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepo) FindByID(ctx context.Context, id int) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) ListByRole(ctx context.Context, role auth.Role) ([]user.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func (m *MockUserRepo) ListAll(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func testNotify() *notify.Service {
	// Queues fail against the unused address; the service treats
	// notification errors as non-fatal.
	return notify.New(notify.Config{From: "from@test.com", FromName: "Test"}, "localhost:6379")
}

func futureSlots(n int) []string {
	base := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	slots := make([]string, n)
	for i := range slots {
		slots[i] = base.AddDate(0, 0, 7*i).Format(time.RFC3339)
	}
	return slots
}

func TestBookRecurring(t *testing.T) {
	ctx := context.Background()

	t.Run("books within capacity", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		ledgerSvc.On("GetByID", mock.Anything, 5).Return(&ledger.Package{
			ID: 5, UserID: 1, Status: ledger.StatusActive, SessionsRemaining: 8,
		}, nil)
		repo.On("CreateRecurringBatch", mock.Anything, 1, 5, mock.Anything, mock.Anything, RecurringSessionMinutes).
			Return([]Session{{ID: 10}, {ID: 11}, {ID: 12}}, nil)
		userRepo.On("FindByID", mock.Anything, 1).Return(&user.User{ID: 1, Name: "Alice", Email: "a@test.com"}, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		resp, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     futureSlots(3),
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, resp.Created)
		assert.Len(t, resp.Sessions, 3)
		repo.AssertExpectations(t)
	})

	t.Run("rejects batch exceeding remaining balance", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		ledgerSvc.On("GetByID", mock.Anything, 5).Return(&ledger.Package{
			ID: 5, UserID: 1, Status: ledger.StatusActive, SessionsRemaining: 1,
		}, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     futureSlots(2),
		})

		var capErr *CapacityError
		assert.ErrorAs(t, err, &capErr)
		assert.Equal(t, 2, capErr.Requested)
		assert.Equal(t, 1, capErr.Remaining)
		repo.AssertNotCalled(t, "CreateRecurringBatch")
	})

	t.Run("hides packages of other users", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		ledgerSvc.On("GetByID", mock.Anything, 5).Return(&ledger.Package{
			ID: 5, UserID: 99, Status: ledger.StatusActive, SessionsRemaining: 8,
		}, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     futureSlots(1),
		})

		assert.ErrorIs(t, err, ledger.ErrPackageNotFound)
	})

	t.Run("rejects past slots", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     []string{time.Now().Add(-2 * time.Hour).Format(time.RFC3339)},
		})

		assert.ErrorIs(t, err, ErrSlotInPast)
	})

	t.Run("rejects malformed slots", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     []string{"next tuesday"},
		})

		assert.ErrorIs(t, err, ErrInvalidSlot)
	})

	t.Run("maps concurrent drain to capacity error", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		ledgerSvc.On("GetByID", mock.Anything, 5).Return(&ledger.Package{
			ID: 5, UserID: 1, Status: ledger.StatusActive, SessionsRemaining: 3,
		}, nil)
		repo.On("CreateRecurringBatch", mock.Anything, 1, 5, mock.Anything, mock.Anything, RecurringSessionMinutes).
			Return(nil, ledger.ErrInsufficientSessions)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.BookRecurring(ctx, 1, RecurringBookingRequest{
			PackageID: 5,
			Slots:     futureSlots(3),
		})

		var capErr *CapacityError
		assert.ErrorAs(t, err, &capErr)
	})
}

func TestCreateFromCalendarBooking(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Add(72 * time.Hour)
	pkgID := 5

	booking := func(title string) CalendarBooking {
		return CalendarBooking{
			BookingRef:    "cal_abc",
			AttendeeEmail: "a@test.com",
			Title:         title,
			StartTime:     start,
			EndTime:       start.Add(45 * time.Minute),
		}
	}

	t.Run("debits package for coaching session", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(&user.User{ID: 1, Email: "a@test.com"}, nil)
		ledgerSvc.On("GetActiveForUser", mock.Anything, 1).Return(&ledger.Package{ID: pkgID, UserID: 1}, nil)
		repo.On("CreateFromBooking", mock.Anything, mock.Anything).
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeCoachingFollowup}, true, nil)
		ledgerSvc.On("Debit", mock.Anything, pkgID, 1).Return(nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		sess, created, err := service.CreateFromCalendarBooking(ctx, booking("Séance de suivi"))

		assert.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, 10, sess.ID)
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("discovery sessions never debit", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(&user.User{ID: 1}, nil)
		ledgerSvc.On("GetActiveForUser", mock.Anything, 1).Return(&ledger.Package{ID: pkgID, UserID: 1}, nil)
		repo.On("CreateFromBooking", mock.Anything, mock.Anything).
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeDiscovery}, true, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, created, err := service.CreateFromCalendarBooking(ctx, booking("Discovery call"))

		assert.NoError(t, err)
		assert.True(t, created)
		ledgerSvc.AssertNotCalled(t, "Debit")
	})

	t.Run("redelivered event does not debit twice", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(&user.User{ID: 1}, nil)
		ledgerSvc.On("GetActiveForUser", mock.Anything, 1).Return(&ledger.Package{ID: pkgID, UserID: 1}, nil)
		repo.On("CreateFromBooking", mock.Anything, mock.Anything).
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeCoachingFollowup}, false, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, created, err := service.CreateFromCalendarBooking(ctx, booking("Suivi"))

		assert.NoError(t, err)
		assert.False(t, created)
		ledgerSvc.AssertNotCalled(t, "Debit")
	})

	t.Run("keeps session and detaches package when debit fails", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(&user.User{ID: 1}, nil)
		ledgerSvc.On("GetActiveForUser", mock.Anything, 1).Return(&ledger.Package{ID: pkgID, UserID: 1}, nil)
		repo.On("CreateFromBooking", mock.Anything, mock.Anything).
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeCoachingFollowup}, true, nil)
		ledgerSvc.On("Debit", mock.Anything, pkgID, 1).Return(ledger.ErrInsufficientSessions)
		repo.On("DetachPackage", mock.Anything, 10).Return(nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		sess, created, err := service.CreateFromCalendarBooking(ctx, booking("Suivi"))

		assert.NoError(t, err)
		assert.True(t, created)
		assert.Nil(t, sess.PackageID)
		repo.AssertExpectations(t)
	})

	t.Run("books without package when none active", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(&user.User{ID: 1}, nil)
		ledgerSvc.On("GetActiveForUser", mock.Anything, 1).Return(nil, ledger.ErrPackageNotFound)
		repo.On("CreateFromBooking", mock.Anything, mock.MatchedBy(func(p CreateBookingParams) bool {
			return p.PackageID == nil
		})).Return(&Session{ID: 10, UserID: 1, SessionType: TypeCoachingFollowup}, true, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, created, err := service.CreateFromCalendarBooking(ctx, booking("Suivi"))

		assert.NoError(t, err)
		assert.True(t, created)
		ledgerSvc.AssertNotCalled(t, "Debit")
	})

	t.Run("rejects unknown attendee", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		userRepo.On("FindByEmail", mock.Anything, "a@test.com").Return(nil, errors.New("user not found"))

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, _, err := service.CreateFromCalendarBooking(ctx, booking("Suivi"))

		assert.ErrorIs(t, err, ErrUnknownAttendee)
		repo.AssertNotCalled(t, "CreateFromBooking")
	})
}

func TestCancelFromCalendar(t *testing.T) {
	ctx := context.Background()
	pkgID := 5

	t.Run("cancels and credits", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByCalcomID", mock.Anything, "cal_abc").
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeCoachingFollowup}, nil)
		repo.On("Cancel", mock.Anything, 10).Return(nil)
		ledgerSvc.On("Credit", mock.Anything, pkgID, 1).Return(nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		sess, err := service.CancelFromCalendar(ctx, "cal_abc")

		assert.NoError(t, err)
		assert.NotNil(t, sess)
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("unknown reference is a no-op", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByCalcomID", mock.Anything, "cal_missing").Return(nil, ErrSessionNotFound)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		sess, err := service.CancelFromCalendar(ctx, "cal_missing")

		assert.NoError(t, err)
		assert.Nil(t, sess)
		ledgerSvc.AssertNotCalled(t, "Credit")
	})

	t.Run("already cancelled does not credit again", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByCalcomID", mock.Anything, "cal_abc").
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, Status: StatusCancelled}, nil)
		repo.On("Cancel", mock.Anything, 10).Return(ErrSessionNotFoundOrAlreadyCancelled)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		sess, err := service.CancelFromCalendar(ctx, "cal_abc")

		assert.NoError(t, err)
		assert.NotNil(t, sess)
		ledgerSvc.AssertNotCalled(t, "Credit")
	})

	t.Run("discovery cancellation never credits", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByCalcomID", mock.Anything, "cal_abc").
			Return(&Session{ID: 10, UserID: 1, SessionType: TypeDiscovery}, nil)
		repo.On("Cancel", mock.Anything, 10).Return(nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		_, err := service.CancelFromCalendar(ctx, "cal_abc")

		assert.NoError(t, err)
		ledgerSvc.AssertNotCalled(t, "Credit")
	})
}

func TestRescheduleFromCalendar(t *testing.T) {
	ctx := context.Background()
	newStart := time.Now().Add(96 * time.Hour)

	repo := new(MockSessionRepo)
	ledgerSvc := new(MockLedgerService)
	userRepo := new(MockUserRepo)

	repo.On("GetByCalcomID", mock.Anything, "cal_abc").
		Return(&Session{ID: 10, UserID: 1, DurationMinutes: 45}, nil)
	repo.On("Reschedule", mock.Anything, 10, newStart, 60).Return(nil)

	service := NewService(repo, ledgerSvc, userRepo, testNotify())
	err := service.RescheduleFromCalendar(ctx, "cal_abc", newStart, newStart.Add(60*time.Minute))

	assert.NoError(t, err)
	// Rescheduling is capacity-neutral.
	ledgerSvc.AssertNotCalled(t, "Debit")
	ledgerSvc.AssertNotCalled(t, "Credit")
}

func TestCancelOwn(t *testing.T) {
	ctx := context.Background()
	pkgID := 5

	t.Run("owner cancels and is credited", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByID", mock.Anything, 10).
			Return(&Session{ID: 10, UserID: 1, PackageID: &pkgID, SessionType: TypeCoachingFollowup}, nil)
		repo.On("Cancel", mock.Anything, 10).Return(nil)
		ledgerSvc.On("Credit", mock.Anything, pkgID, 1).Return(nil)
		userRepo.On("FindByID", mock.Anything, 1).Return(&user.User{ID: 1, Name: "Alice", Email: "a@test.com"}, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		err := service.CancelOwn(ctx, 1, 10)

		assert.NoError(t, err)
		ledgerSvc.AssertExpectations(t)
	})

	t.Run("rejects other users' sessions", func(t *testing.T) {
		repo := new(MockSessionRepo)
		ledgerSvc := new(MockLedgerService)
		userRepo := new(MockUserRepo)

		repo.On("GetByID", mock.Anything, 10).Return(&Session{ID: 10, UserID: 99}, nil)

		service := NewService(repo, ledgerSvc, userRepo, testNotify())
		err := service.CancelOwn(ctx, 1, 10)

		assert.ErrorIs(t, err, ErrNotOwner)
		repo.AssertNotCalled(t, "Cancel")
	})
}
