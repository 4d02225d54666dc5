package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fitcoach/internal/ledger"
)

var (
	ErrSessionNotFound                   = errors.New("session not found")
	ErrSessionNotFoundOrAlreadyCancelled = errors.New("session not found or already cancelled")
)

const sessionColumns = `id, user_id, package_id, session_type, session_date, scheduled_time,
	       duration_minutes, status, calcom_booking_id, meeting_link, google_meet_link,
	       reminder_sent, recurring_batch_id, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateFromBooking(ctx context.Context, params CreateBookingParams) (*Session, bool, error) {
	query := `
		INSERT INTO sessions (user_id, package_id, session_type, session_date, scheduled_time,
		                      duration_minutes, status, calcom_booking_id, meeting_link)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $8)
		ON CONFLICT (calcom_booking_id) DO NOTHING
		RETURNING ` + sessionColumns

	var sess Session
	err := r.db.GetContext(ctx, &sess, query,
		params.UserID, params.PackageID, params.SessionType,
		params.StartTime.Format("2006-01-02"), params.StartTime.Format("15:04:05"),
		params.DurationMinutes, params.CalcomBookingID, params.MeetingLink)
	if err == nil {
		return &sess, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Conflict: the booking reference was already processed.
	existing, err := r.GetByCalcomID(ctx, params.CalcomBookingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *repository) CreateRecurringBatch(ctx context.Context, userID, packageID int, batchID uuid.UUID, slots []time.Time, durationMinutes int) ([]Session, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var pkg struct {
		Status            string    `db:"status"`
		SessionsRemaining int       `db:"sessions_remaining"`
		EndDate           time.Time `db:"end_date"`
	}
	err = tx.QueryRowxContext(ctx, `
		SELECT status, sessions_remaining, end_date
		FROM packages
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, packageID, userID).StructScan(&pkg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrPackageNotFound
		}
		return nil, err
	}

	if pkg.Status != string(ledger.StatusActive) || pkg.EndDate.Before(time.Now().Truncate(24*time.Hour)) {
		return nil, ledger.ErrPackageNotActive
	}
	if len(slots) > pkg.SessionsRemaining {
		return nil, ledger.ErrInsufficientSessions
	}

	insert := `
		INSERT INTO sessions (user_id, package_id, session_type, session_date, scheduled_time,
		                      duration_minutes, status, recurring_batch_id)
		VALUES ($1, $2, 'coaching_followup', $3, $4, $5, 'scheduled', $6)
		RETURNING ` + sessionColumns

	sessions := make([]Session, 0, len(slots))
	for _, slot := range slots {
		var sess Session
		err = tx.QueryRowxContext(ctx, insert,
			userID, packageID,
			slot.Format("2006-01-02"), slot.Format("15:04:05"),
			durationMinutes, batchID,
		).StructScan(&sess)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE packages
		SET sessions_used = sessions_used + $2,
		    sessions_remaining = sessions_remaining - $2,
		    updated_at = NOW()
		WHERE id = $1 AND sessions_remaining >= $2
	`, packageID, len(slots))
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ledger.ErrInsufficientSessions
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *repository) DetachPackage(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET package_id = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var sess Session
	err := r.db.GetContext(ctx, &sess, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &sess, nil
}

func (r *repository) GetByCalcomID(ctx context.Context, calcomBookingID string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE calcom_booking_id = $1`

	var sess Session
	err := r.db.GetContext(ctx, &sess, query, calcomBookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &sess, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY session_date DESC, scheduled_time DESC
	`

	var sessions []Session
	err := r.db.SelectContext(ctx, &sessions, query, userID)
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *repository) Cancel(ctx context.Context, id int) error {
	query := `
		UPDATE sessions
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled', 'rescheduled')
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSessionNotFoundOrAlreadyCancelled
	}

	return nil
}

func (r *repository) Reschedule(ctx context.Context, id int, startTime time.Time, durationMinutes int) error {
	query := `
		UPDATE sessions
		SET session_date = $2,
		    scheduled_time = $3,
		    duration_minutes = $4,
		    status = 'rescheduled',
		    reminder_sent = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('scheduled', 'rescheduled')
	`

	result, err := r.db.ExecContext(ctx, query, id,
		startTime.Format("2006-01-02"), startTime.Format("15:04:05"), durationMinutes)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrSessionNotFoundOrAlreadyCancelled
	}

	return nil
}

func (r *repository) ListDueReminders(ctx context.Context, onOrAfter time.Time) ([]DueReminder, error) {
	query := `
		SELECT s.id AS session_id,
		       s.session_type,
		       s.session_date,
		       s.scheduled_time,
		       s.duration_minutes,
		       s.meeting_link,
		       u.name AS user_name,
		       u.email AS user_email,
		       u.phone AS user_phone
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.status IN ('scheduled', 'rescheduled')
		  AND s.reminder_sent = FALSE
		  AND s.session_date >= $1
		ORDER BY s.session_date, s.scheduled_time
	`

	var due []DueReminder
	err := r.db.SelectContext(ctx, &due, query, onOrAfter.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	return due, nil
}

func (r *repository) MarkReminderSent(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *repository) GetStatsByDay(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	query := `
		SELECT session_date AS day, COUNT(*) AS count
		FROM sessions
		WHERE session_date BETWEEN $1 AND $2
		  AND status != 'cancelled'
		GROUP BY session_date
		ORDER BY session_date
	`

	var stats []DayStat
	err := r.db.SelectContext(ctx, &stats, query, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) GetStatsByType(ctx context.Context, from, to time.Time) ([]TypeStat, error) {
	query := `
		SELECT session_type, COUNT(*) AS count
		FROM sessions
		WHERE session_date BETWEEN $1 AND $2
		  AND status != 'cancelled'
		GROUP BY session_type
		ORDER BY count DESC
	`

	var stats []TypeStat
	err := r.db.SelectContext(ctx, &stats, query, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	return stats, nil
}
