package session

import (
	"time"

	"github.com/google/uuid"
)

type SessionType string
type SessionStatus string

const (
	TypeDiscovery        SessionType = "discovery"
	TypeCoaching         SessionType = "coaching"
	TypeCoachingFollowup SessionType = "coaching_followup"

	StatusScheduled   SessionStatus = "scheduled"
	StatusCompleted   SessionStatus = "completed"
	StatusCancelled   SessionStatus = "cancelled"
	StatusRescheduled SessionStatus = "rescheduled"
	StatusNoShow      SessionStatus = "no_show"
)

// RecurringSessionMinutes is the fixed duration of self-service recurring
// bookings.
const RecurringSessionMinutes = 45

type Session struct {
	ID               int           `db:"id" json:"id"`
	UserID           int           `db:"user_id" json:"user_id"`
	PackageID        *int          `db:"package_id" json:"package_id,omitempty"`
	SessionType      SessionType   `db:"session_type" json:"session_type"`
	SessionDate      time.Time     `db:"session_date" json:"session_date"`
	ScheduledTime    string        `db:"scheduled_time" json:"scheduled_time"`
	DurationMinutes  int           `db:"duration_minutes" json:"duration_minutes"`
	Status           SessionStatus `db:"status" json:"status"`
	CalcomBookingID  *string       `db:"calcom_booking_id" json:"calcom_booking_id,omitempty"`
	MeetingLink      *string       `db:"meeting_link" json:"meeting_link,omitempty"`
	GoogleMeetLink   *string       `db:"google_meet_link" json:"google_meet_link,omitempty"`
	ReminderSent     bool          `db:"reminder_sent" json:"reminder_sent"`
	RecurringBatchID *uuid.UUID    `db:"recurring_batch_id" json:"recurring_batch_id,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// DueReminder joins a scheduled session with the client's contact details
// for the reminder sweep.
type DueReminder struct {
	SessionID       int         `db:"session_id"`
	SessionType     SessionType `db:"session_type"`
	SessionDate     time.Time   `db:"session_date"`
	ScheduledTime   string      `db:"scheduled_time"`
	DurationMinutes int         `db:"duration_minutes"`
	MeetingLink     *string     `db:"meeting_link"`
	UserName        string      `db:"user_name"`
	UserEmail       string      `db:"user_email"`
	UserPhone       *string     `db:"user_phone"`
}

type DayStat struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}

type TypeStat struct {
	SessionType SessionType `db:"session_type" json:"session_type"`
	Count       int         `db:"count" json:"count"`
}

type RecurringBookingRequest struct {
	PackageID int      `json:"package_id" binding:"required"`
	Slots     []string `json:"slots" binding:"required,min=1,dive,required"`
}

type RecurringBookingResponse struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Created  int       `json:"created"`
	Sessions []Session `json:"sessions"`
}
